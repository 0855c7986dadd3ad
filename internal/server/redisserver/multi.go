package redisserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

func init() {
	register(
		&Command{Name: "MULTI", MinArgs: 0, MaxArgs: 0, Flags: flagNoQueue | flagFast, Handler: multiCommand},
		&Command{Name: "EXEC", MinArgs: 0, MaxArgs: 0, Flags: flagNoQueue, Handler: execCommand},
		&Command{Name: "DISCARD", MinArgs: 0, MaxArgs: 0, Flags: flagNoQueue | flagFast, Handler: discardCommand},
	)
}

// queued is a command waiting for EXEC. Its args are owned copies.
type queued struct {
	cmd  *Command
	args [][]byte
}

// multiState is the transaction context of one connection.
type multiState struct {
	active bool
	// dirty is set when a command failed validation while queuing.
	dirty bool
	queue []queued
}

func (m *multiState) reset() {
	m.active = false
	m.dirty = false
	m.queue = nil
}

// Session is the per-connection execution state: the transaction context and
// the QUIT flag. It is not safe for concurrent use; one connection drives it.
type Session struct {
	store  *memory.Store
	logger *slog.Logger
	multi  multiState
	quit   bool

	// observe, when set, is called once per executed frame.
	observe func(name string, err error, d time.Duration)
}

// NewSession creates a session over store.
func NewSession(store *memory.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, logger: logger}
}

// InMulti reports whether a transaction is being queued.
func (s *Session) InMulti() bool { return s.multi.active }

// Quit reports whether the client asked to close the connection.
func (s *Session) Quit() bool { return s.quit }

// Close discards any pending transaction.
func (s *Session) Close() {
	s.multi.reset()
}

// Execute runs one command frame (name first) and returns the reply.
func (s *Session) Execute(frame [][]byte) Value {
	start := time.Now()
	name, v, err := s.execute(frame)
	if s.observe != nil {
		s.observe(name, err, time.Since(start))
	}
	return replyOf(v, err)
}

func (s *Session) execute(frame [][]byte) (name string, v Value, err error) {
	cmd, err := resolve(frame)
	if err != nil {
		if s.multi.active {
			s.multi.dirty = true
		}
		name = "unknown"
		if cmd != nil {
			name = cmd.Name
		}
		return name, Value{}, err
	}
	name = cmd.Name

	if s.multi.active && cmd.Flags&flagNoQueue == 0 {
		s.multi.queue = append(s.multi.queue, queued{cmd: cmd, args: cloneArgs(frame[1:])})
		return name, Queued, nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command panicked", "command", name, "panic", fmt.Sprint(r))
			v, err = Value{}, errInternal
		}
	}()

	v, err = Dispatch(&Context{Keyspace: s.store, sess: s}, cmd, frame[1:])
	return name, v, err
}

// cloneArgs copies args into one allocation; queued args must outlive the
// connection's read buffer.
func cloneArgs(args [][]byte) [][]byte {
	n := 0
	for _, a := range args {
		n += len(a)
	}
	buf := make([]byte, 0, n)
	out := make([][]byte, len(args))
	for i, a := range args {
		start := len(buf)
		buf = append(buf, a...)
		out[i] = buf[start:len(buf):len(buf)]
	}
	return out
}

func multiCommand(ctx *Context, _ [][]byte) (Value, error) {
	if ctx.sess.multi.active {
		return Value{}, errNestedMulti
	}
	ctx.sess.multi.active = true
	return OK, nil
}

func discardCommand(ctx *Context, _ [][]byte) (Value, error) {
	if !ctx.sess.multi.active {
		return Value{}, errNoMulti("DISCARD")
	}
	ctx.sess.multi.reset()
	return OK, nil
}

// execCommand runs the queued commands in order while holding the locks of
// every shard they touch. A failing command replies its error in place; the
// others still run.
func execCommand(ctx *Context, _ [][]byte) (Value, error) {
	m := &ctx.sess.multi
	if !m.active {
		return Value{}, errNoMulti("EXEC")
	}
	queue, dirty := m.queue, m.dirty
	m.reset()
	if dirty {
		return Value{}, errExecAbort
	}

	var keys []string
	for _, q := range queue {
		keys = append(keys, q.cmd.Keys(q.args)...)
	}

	replies := make([]Value, len(queue))
	ctx.sess.store.Atomic(keys, func(tx *memory.Txn) {
		for i, q := range queue {
			replies[i] = replyOf(Dispatch(&Context{Keyspace: tx, sess: ctx.sess}, q.cmd, q.args))
		}
	})
	return Array(replies...), nil
}
