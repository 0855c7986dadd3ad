package redisserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

func startTestServer(t *testing.T, cfg *Config, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Addr = "127.0.0.1:0"
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Second
	}

	store := memory.New()
	srv := New(cfg, store, nil, opts...)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return srv, store
}

// testClient writes encoded commands and decodes replies.
type testClient struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
	buf  []byte
}

func dial(t *testing.T, srv *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, br: bufio.NewReader(conn)}
}

func encodeCommand(words ...string) []byte {
	elems := make([]Value, len(words))
	for i, w := range words {
		elems[i] = BulkString(w)
	}
	return Encode(Array(elems...))
}

func (c *testClient) send(words ...string) {
	c.t.Helper()
	c.write(encodeCommand(words...))
}

func (c *testClient) write(b []byte) {
	c.t.Helper()
	if _, err := c.conn.Write(b); err != nil {
		c.t.Fatalf("Write() error = %v", err)
	}
}

// read decodes the next reply, reading more bytes as needed.
func (c *testClient) read() Value {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	chunk := make([]byte, 4096)
	for {
		v, n, err := Decode(c.buf)
		if err == nil {
			// Detach from the buffer before it is shifted.
			v = decodeCopy(c.buf[:n])
			c.buf = c.buf[n:]
			return v
		}
		if !errors.Is(err, ErrIncomplete) {
			c.t.Fatalf("Decode() error = %v", err)
		}
		m, err := c.br.Read(chunk)
		if err != nil {
			c.t.Fatalf("Read() error = %v", err)
		}
		c.buf = append(c.buf, chunk[:m]...)
	}
}

func decodeCopy(b []byte) Value {
	v, _, _ := Decode(append([]byte(nil), b...))
	return v
}

func (c *testClient) do(words ...string) Value {
	c.t.Helper()
	c.send(words...)
	return c.read()
}

func (c *testClient) expect(want Value, words ...string) {
	c.t.Helper()
	if got := c.do(words...); !got.Equal(want) {
		c.t.Errorf("%s = %v, want %v", strings.Join(words, " "), got, want)
	}
}

// expectClosed waits for the server to close the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.br.ReadByte(); !errors.Is(err, io.EOF) {
		c.t.Errorf("expected EOF, got %v", err)
	}
}

// ============================================================
// Server lifecycle
// ============================================================

func TestServer_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Addr != "127.0.0.1:6378" {
		t.Errorf("Addr = %q, want 127.0.0.1:6378", cfg.Addr)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.IdleTimeout)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := New(&Config{Addr: "127.0.0.1:0"}, memory.New(), nil)

	if srv.Addr() != nil {
		t.Error("Addr() should be nil before Start")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.Addr() == nil {
		t.Fatal("Addr() is nil after Start")
	}
	if !srv.Running() {
		t.Error("Running() = false after Start")
	}

	c := dial(t, srv)
	c.expect(SimpleString("PONG"), "PING")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if srv.Running() {
		t.Error("Running() = true after Shutdown")
	}

	// Open connections are closed by Shutdown.
	c.expectClosed()

	if _, err := net.Dial("tcp", srv.Addr().String()); err == nil {
		t.Error("listener still accepting after Shutdown")
	}
}

func TestServer_ContextCancelStops(t *testing.T) {
	srv := New(&Config{Addr: "127.0.0.1:0"}, memory.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	c := dial(t, srv)
	c.expect(SimpleString("PONG"), "PING")

	cancel()
	c.expectClosed()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

// ============================================================
// Protocol behavior over TCP
// ============================================================

func TestServer_SetGetExpiry(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	c := dial(t, srv)

	c.expect(OK, "SET", "foo", "bar")
	c.expect(BulkString("bar"), "GET", "foo")
	c.expect(NullBulk(), "GET", "nothere")

	c.expect(OK, "SET", "lol", "bar", "PX", "100")
	c.expect(BulkString("bar"), "GET", "lol")
	time.Sleep(150 * time.Millisecond)
	c.expect(NullBulk(), "GET", "lol")
}

func TestServer_ByteExactReplies(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	c := dial(t, srv)

	tests := []struct {
		frame string
		want  string
	}{
		{"*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n", "+OK\r\n"},
		{"*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n", "$3\r\nbar\r\n"},
		{"*2\r\n$3\r\nGET\r\n$7\r\nmissing\r\n", "$-1\r\n"},
		{"*2\r\n$4\r\nINCR\r\n$1\r\nn\r\n", ":1\r\n"},
		{"*1\r\n$5\r\nMULTI\r\n", "+OK\r\n"},
		{"*2\r\n$4\r\nINCR\r\n$1\r\nn\r\n", "+QUEUED\r\n"},
		{"*1\r\n$4\r\nEXEC\r\n", "*1\r\n:2\r\n"},
	}

	for _, tt := range tests {
		c.write([]byte(tt.frame))
		got := make([]byte, len(tt.want))
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := io.ReadFull(c.br, got); err != nil {
			t.Fatalf("ReadFull() error = %v", err)
		}
		if string(got) != tt.want {
			t.Errorf("reply to %q = %q, want %q", tt.frame, got, tt.want)
		}
	}
}

func TestServer_Pipelining(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	c := dial(t, srv)

	var batch []byte
	for i := 0; i < 100; i++ {
		batch = append(batch, encodeCommand("INCR", "p")...)
	}
	c.write(batch)

	for i := 1; i <= 100; i++ {
		if got := c.read(); !got.Equal(Integer(int64(i))) {
			t.Fatalf("reply %d = %v", i, got)
		}
	}
}

func TestServer_SplitFrames(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	c := dial(t, srv)

	frame := encodeCommand("SET", "split", strings.Repeat("x", 10000))
	for i := 0; i < len(frame); i += 7 {
		end := min(i+7, len(frame))
		c.write(frame[i:end])
	}
	if got := c.read(); !got.Equal(OK) {
		t.Fatalf("SET reply = %v", got)
	}
	c.expect(SimpleString("PONG"), "PING")

	if got := c.do("GET", "split"); len(got.Bytes()) != 10000 {
		t.Errorf("GET returned %d bytes, want 10000", len(got.Bytes()))
	}
}

func TestServer_ProtocolErrorCloses(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	tests := []struct {
		name  string
		input string
	}{
		{"array too long", "*10000\r\n"},
		{"bad type byte", "!x\r\n"},
		{"inline command", "PING\r\n"},
		{"non-bulk element", "*1\r\n:1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dial(t, srv)
			c.write([]byte(tt.input))

			got := c.read()
			if !got.IsError() || !strings.HasPrefix(got.Str(), "ERR Protocol error:") {
				t.Errorf("reply = %v, want protocol error", got)
			}
			c.expectClosed()
		})
	}

	// Other connections are unaffected.
	c := dial(t, srv)
	c.expect(SimpleString("PONG"), "PING")
}

func TestServer_Quit(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	c := dial(t, srv)

	c.expect(OK, "QUIT")
	c.expectClosed()
}

func TestServer_DisconnectDiscardsTransaction(t *testing.T) {
	srv, store := startTestServer(t, nil)
	c := dial(t, srv)

	c.expect(OK, "MULTI")
	c.expect(Queued, "SET", "pending", "1")
	c.conn.Close()

	// Wait for the handler to notice the close.
	deadline := time.Now().Add(2 * time.Second)
	for srv.NumConns() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Exists("pending") {
		t.Error("queued command ran after disconnect")
	}
}

func TestServer_ConcurrentIncrAcrossConnections(t *testing.T) {
	srv, store := startTestServer(t, nil)

	const clients, perClient = 2, 200
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		c := dial(t, srv)
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := encodeCommand("INCR", "shared")
			for j := 0; j < perClient; j++ {
				if _, err := c.conn.Write(frame); err != nil {
					t.Errorf("Write() error = %v", err)
					return
				}
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perClient; j++ {
				if v := c.read(); v.IsError() {
					t.Errorf("INCR = %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _ := store.Get("shared")
	if want := strconv.Itoa(clients * perClient); string(v) != want {
		t.Errorf("shared = %s, want %s", v, want)
	}
}

func TestServer_IsolatedTransactions(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	a := dial(t, srv)
	b := dial(t, srv)

	a.expect(OK, "MULTI")
	a.expect(Queued, "SET", "k", "from-a")

	// b is not in a transaction.
	b.expect(OK, "SET", "k", "from-b")

	a.expect(Array(OK), "EXEC")
	b.expect(BulkString("from-a"), "GET", "k")
}

// ============================================================
// Admission limits
// ============================================================

func TestServer_MaxClients(t *testing.T) {
	srv, _ := startTestServer(t, &Config{MaxClients: 1})

	first := dial(t, srv)
	first.expect(SimpleString("PONG"), "PING")

	second := dial(t, srv)
	if got := second.read(); !got.Equal(Error("ERR max number of clients reached")) {
		t.Errorf("reply = %v, want max clients error", got)
	}
	second.expectClosed()

	first.expect(SimpleString("PONG"), "PING")
}

func TestServer_RateLimit(t *testing.T) {
	srv, _ := startTestServer(t, &Config{RateLimit: 5})
	c := dial(t, srv)

	limited := 0
	for i := 0; i < 20; i++ {
		if v := c.do("PING"); v.Equal(Error("ERR rate limit exceeded")) {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected some commands to be rate limited")
	}

	// The connection survives rate limiting.
	time.Sleep(300 * time.Millisecond)
	c.expect(SimpleString("PONG"), "PING")
}

func TestServer_IdleTimeout(t *testing.T) {
	srv, _ := startTestServer(t, &Config{IdleTimeout: 100 * time.Millisecond})
	c := dial(t, srv)

	c.expect(SimpleString("PONG"), "PING")
	c.expectClosed()
}

// A reply larger than the write buffer after a long idle period must not
// reuse the expired write deadline of the previous batch.
func TestServer_LargeReplyAfterIdle(t *testing.T) {
	srv, _ := startTestServer(t, &Config{WriteTimeout: 200 * time.Millisecond})
	c := dial(t, srv)

	big := strings.Repeat("x", 8192)
	c.expect(OK, "SET", "big", big)

	time.Sleep(400 * time.Millisecond)
	c.expect(BulkString(big), "GET", "big")
	c.expect(SimpleString("PONG"), "PING")
}

// acceptRaceListener hands out one connection after the server has stopped
// running, as if close swept the registry between Accept and Store.
type acceptRaceListener struct {
	srv    *Server
	conn   net.Conn
	served bool
}

func (l *acceptRaceListener) Accept() (net.Conn, error) {
	if l.served {
		return nil, net.ErrClosed
	}
	l.served = true
	l.srv.running.Store(false)
	return l.conn, nil
}

func (l *acceptRaceListener) Close() error   { return nil }
func (l *acceptRaceListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestServer_AcceptDuringClose(t *testing.T) {
	srv := New(&Config{}, memory.New(), nil)
	srv.running.Store(true)

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	ln := &acceptRaceListener{srv: srv, conn: serverSide}

	if err := srv.acceptLoop(context.Background(), ln); err != nil {
		t.Fatalf("acceptLoop() error = %v", err)
	}
	if n := srv.NumConns(); n != 0 {
		t.Errorf("NumConns() = %d, want 0", n)
	}

	_ = clientSide.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := clientSide.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("Read() error = %v, want EOF from the closed connection", err)
	}
	srv.wg.Wait()
}

func TestServer_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	srv, _ := startTestServer(t, nil, WithMetrics(reg))
	c := dial(t, srv)

	c.expect(OK, "SET", "k", "v")
	c.expect(Error("ERR wrong number of arguments for 'get' command"), "GET")

	body := scrapeMetrics(t, reg)
	for _, want := range []string{
		`kvmesh_commands_total{command="SET",status="ok"} 1`,
		`kvmesh_commands_total{command="GET",status="wrong_args"} 1`,
		"kvmesh_connections_active 1",
		"kvmesh_connections_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func scrapeMetrics(t *testing.T, reg *metric.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	return rec.Body.String()
}
