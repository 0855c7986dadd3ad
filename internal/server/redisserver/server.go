package redisserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// Default timeouts.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// ReadTimeout bounds reading the rest of a frame once it has started.
	// Helps prevent slowloris attacks.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing replies.
	WriteTimeout time.Duration
	// IdleTimeout is how long a connection may sit between commands.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per client IP.
	// Set to 0 to disable rate limiting.
	RateLimit int
	// MaxClients caps concurrent connections. 0 means unlimited.
	MaxClients int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:6378",
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
		RateLimit:    0,
		MaxClients:   0,
	}
}

// Server accepts client connections and serves them against one store.
type Server struct {
	cfg     *Config
	store   *memory.Store
	metrics *metric.Registry
	logger  *slog.Logger

	ln      net.Listener
	addr    atomic.Pointer[net.TCPAddr]
	running atomic.Bool
	wg      sync.WaitGroup

	conns    *xsync.MapOf[string, *Conn]
	limiters *xsync.MapOf[string, *rate.Limiter]
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics records connection and command metrics in r.
func WithMetrics(r *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = r
	}
}

// New creates a server over store.
func New(cfg *Config, store *memory.Store, logger *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		conns:    xsync.NewMapOf[string, *Conn](),
		limiters: xsync.NewMapOf[string, *rate.Limiter](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves connections in the background until
// Shutdown is called or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.addr.Store(tcp)
	}
	s.running.Store(true)
	s.logger.Info("redis server listening", "address", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("redis server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		if s.running.Load() {
			_ = s.close()
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if a := s.addr.Load(); a != nil {
		return a
	}
	return nil
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.running.Load()
}

// NumConns returns the number of open connections.
func (s *Server) NumConns() int {
	return s.conns.Size()
}

// close stops accepting and closes every tracked connection.
func (s *Server) close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		return true
	})
	return err
}

// Shutdown closes the listener and all connections, then waits for their
// handlers to return or ctx to expire. Pending transactions are discarded.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("accept error", "error", err)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		if s.cfg.MaxClients > 0 && s.conns.Size() >= s.cfg.MaxClients {
			s.metrics.Rejected("max_clients")
			s.logger.Warn("max clients reached, rejecting connection", "remote", nc.RemoteAddr().String())
			s.reject(nc)
			continue
		}

		c := s.newConn(nc)
		s.conns.Store(c.id, c)
		// close may have swept conns before this Store.
		if !s.running.Load() {
			s.conns.Delete(c.id)
			_ = c.Close()
			return nil
		}
		s.metrics.ConnOpened()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.conns.Delete(c.id)
				s.metrics.ConnClosed()
				c.logger.Debug("connection closed", "lifetime", time.Since(c.createdAt))
			}()
			c.logger.Debug("connection accepted")
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) newConn(nc net.Conn) *Conn {
	id := ulid.Make().String()
	log := s.logger.With(logger.ConnIDAttr, id, "remote", nc.RemoteAddr().String())

	sess := NewSession(s.store, log)
	if s.metrics != nil {
		sess.observe = func(name string, err error, d time.Duration) {
			status := "ok"
			if err != nil {
				status = asCommandError(err).Kind.String()
			}
			s.metrics.ObserveCommand(name, status, d)
		}
	}

	c := newConn(id, nc, sess, log)
	if s.cfg.RateLimit > 0 {
		c.limiter = s.limiterFor(nc.RemoteAddr())
	}
	return c
}

// limiterFor returns the limiter shared by every connection from addr's IP.
func (s *Server) limiterFor(addr net.Addr) *rate.Limiter {
	ip := addr.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	l, _ := s.limiters.LoadOrCompute(ip, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit)
	})
	return l
}

func (s *Server) reject(nc net.Conn) {
	_, writeTimeout, _ := s.timeouts()
	_ = nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, _ = nc.Write(Encode(errMaxClients.Reply()))
	_ = nc.Close()
}

func (s *Server) timeouts() (read, write, idle time.Duration) {
	read, write, idle = s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.cfg.IdleTimeout
	if read <= 0 {
		read = DefaultReadTimeout
	}
	if write <= 0 {
		write = DefaultWriteTimeout
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return read, write, idle
}
