package command

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/cli/repl"
)

// session owns the RESP connection shared by one-shot and REPL modes. It
// dials lazily and redials after a transport failure.
type session struct {
	addr      string
	timeout   time.Duration
	formatter output.Formatter
	out       io.Writer

	client *connection.Client
}

func newSession(addr string, timeout time.Duration, f output.Formatter, out io.Writer) *session {
	return &session{addr: addr, timeout: timeout, formatter: f, out: out}
}

// Exec sends args as one command and prints the reply. Error replies are
// printed, not returned. QUIT ends the session with repl.ErrQuit.
func (s *session) Exec(ctx context.Context, args []string) error {
	if s.client == nil {
		c, err := connection.Dial(ctx, s.addr, s.timeout)
		if err != nil {
			return fmt.Errorf("could not connect to %s: %w", s.addr, err)
		}
		s.client = c
	}

	v, err := s.client.Do(ctx, args...)
	if err != nil {
		s.Close()
		return err
	}
	if err := s.formatter.Format(s.out, v); err != nil {
		return err
	}

	if strings.EqualFold(args[0], "QUIT") {
		s.Close()
		return repl.ErrQuit
	}
	return nil
}

// Close drops the connection, if any.
func (s *session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
