package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
)

// DefaultTimeout bounds dialing and each request.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned by Do after the server closed the connection.
var ErrClosed = errors.New("connection: closed by server")

// Client is a RESP client for one connection. It is not safe for
// concurrent use.
type Client struct {
	addr    string
	timeout time.Duration
	conn    net.Conn
	bw      *bufio.Writer
	pending []byte
	rbuf    []byte
}

// Dial connects to a kvmesh server.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{
		addr:    addr,
		timeout: timeout,
		conn:    conn,
		bw:      bufio.NewWriter(conn),
		rbuf:    make([]byte, 4096),
	}, nil
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command and waits for its reply. Error replies are returned
// as values; the error result is reserved for transport failures.
func (c *Client) Do(ctx context.Context, args ...string) (redisserver.Value, error) {
	if len(args) == 0 {
		return redisserver.Value{}, errors.New("connection: empty command")
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return redisserver.Value{}, err
	}

	elems := make([]redisserver.Value, len(args))
	for i, a := range args {
		elems[i] = redisserver.BulkString(a)
	}
	if _, err := c.bw.Write(redisserver.Encode(redisserver.Array(elems...))); err != nil {
		return redisserver.Value{}, err
	}
	if err := c.bw.Flush(); err != nil {
		return redisserver.Value{}, err
	}
	return c.readReply()
}

func (c *Client) readReply() (redisserver.Value, error) {
	for {
		if len(c.pending) > 0 {
			v, n, err := redisserver.Decode(c.pending)
			switch {
			case err == nil:
				// v may reference pending; start a fresh buffer for the rest.
				c.pending = append([]byte(nil), c.pending[n:]...)
				return v, nil
			case !errors.Is(err, redisserver.ErrIncomplete):
				return redisserver.Value{}, fmt.Errorf("decode reply: %w", err)
			}
		}

		n, err := c.conn.Read(c.rbuf)
		c.pending = append(c.pending, c.rbuf[:n]...)
		if err != nil {
			if n > 0 {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				return redisserver.Value{}, ErrClosed
			}
			return redisserver.Value{}, err
		}
	}
}
