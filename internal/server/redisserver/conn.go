package redisserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// initialReadBuf is the starting size of a connection's read buffer. It
	// doubles when a pending frame does not fit.
	initialReadBuf = 4 * 1024

	// maxReadBuf bounds the read buffer. Frames larger than this are a
	// protocol error.
	maxReadBuf = 4 * MaxBulkLen
)

// Conn represents a single client connection.
type Conn struct {
	id      string
	netConn net.Conn
	bw      *bufio.Writer
	sess    *Session
	limiter *rate.Limiter
	logger  *slog.Logger

	createdAt time.Time
	closed    atomic.Bool
}

func newConn(id string, c net.Conn, sess *Session, logger *slog.Logger) *Conn {
	return &Conn{
		id:        id,
		netConn:   c,
		bw:        bufio.NewWriter(c),
		sess:      sess,
		logger:    logger,
		createdAt: time.Now(),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the client's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// writeReply buffers one reply. A reply larger than the buffer goes straight
// to the socket, so the write deadline must already be set.
func (c *Conn) writeReply(scratch []byte, v Value) ([]byte, error) {
	scratch = v.AppendTo(scratch[:0])
	_, err := c.bw.Write(scratch)
	return scratch, err
}

// flush writes buffered replies. With nothing buffered it still reports an
// earlier failed write, which bufio.Writer keeps.
func (c *Conn) flush(timeout time.Duration) error {
	if c.bw.Buffered() == 0 {
		return c.bw.Flush()
	}
	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.bw.Flush()
}

// serveConn runs the read/execute/reply loop until the client leaves, a
// deadline passes, a frame is malformed or the server shuts down.
//
// Frames are decoded from a growable buffer. All complete frames in the
// buffer are executed before replies are flushed, which keeps pipelined
// clients to one write per batch.
func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()
	defer c.sess.Close()

	readTimeout, writeTimeout, idleTimeout := s.timeouts()

	buf := make([]byte, initialReadBuf)
	start, end := 0, 0
	var scratch []byte

	for {
		if start < end {
			if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
		for start < end {
			v, n, err := Decode(buf[start:end])
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err == nil {
				var args [][]byte
				args, err = CommandArgs(v)
				if err == nil {
					start += n
					if args == nil {
						continue
					}
					scratch, err = c.writeReply(scratch, s.execute(c, args))
					if err != nil {
						c.logger.Debug("connection write error", "error", err)
						return
					}
					if c.sess.Quit() {
						_ = c.flush(writeTimeout)
						return
					}
					continue
				}
			}

			s.protocolError(c, err, writeTimeout)
			return
		}

		if err := c.flush(writeTimeout); err != nil {
			c.logger.Debug("connection write error", "error", err)
			return
		}

		// Compact, then grow if a pending frame fills the buffer.
		if start == end {
			start, end = 0, 0
		} else if start > 0 {
			end = copy(buf, buf[start:end])
			start = 0
		}
		if end == len(buf) {
			if len(buf) >= maxReadBuf {
				s.protocolError(c, limitErr(0, "frame exceeds %d bytes", maxReadBuf), writeTimeout)
				return
			}
			grown := make([]byte, 2*len(buf))
			copy(grown, buf[:end])
			buf = grown
		}

		// Idle deadline between commands; per-command deadline once a frame
		// has started (slowloris protection).
		deadline := idleTimeout
		if end > 0 {
			deadline = readTimeout
		}
		if err := c.netConn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return
		}

		n, err := c.netConn.Read(buf[end:])
		end += n
		if err != nil && n == 0 {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.As(err, &netErr) && netErr.Timeout():
				c.logger.Debug("connection timed out")
			default:
				c.logger.Debug("connection read error", "error", err)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// execute applies admission control, then runs the frame in the session.
func (s *Server) execute(c *Conn, args [][]byte) Value {
	if c.limiter != nil && !c.limiter.Allow() {
		s.metrics.Rejected("rate_limited")
		return errRateLimited.Reply()
	}
	return c.sess.Execute(args)
}

// protocolError replies with the protocol error then lets the caller close
// the connection.
func (s *Server) protocolError(c *Conn, err error, writeTimeout time.Duration) {
	s.metrics.ProtocolError()

	detail := err.Error()
	var pe *ProtocolError
	if errors.As(err, &pe) {
		detail = pe.Msg
	}
	if errors.Is(err, ErrLimitExceeded) {
		c.logger.Warn("protocol limit exceeded", "error", err)
	} else {
		c.logger.Debug("protocol error", "error", err)
	}

	if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return
	}
	if _, err := c.writeReply(nil, errProtocol(detail).Reply()); err != nil {
		return
	}
	_ = c.flush(writeTimeout)
}
