package redisserver

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSession(t *testing.T) (*Session, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	store := memory.New(memory.WithClock(clock.Now))
	return NewSession(store, nil), clock
}

// do runs a command given as space separated words.
func do(s *Session, words ...string) Value {
	frame := make([][]byte, len(words))
	for i, w := range words {
		frame[i] = []byte(w)
	}
	return s.Execute(frame)
}

func cmd(line string) []string {
	return strings.Fields(line)
}

func expectReply(t *testing.T, got, want Value) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("reply = %v, want %v", got, want)
	}
}

// ============================================================
// Command table
// ============================================================

func TestCommandTable(t *testing.T) {
	want := []string{"DECR", "DECRBY", "DEL", "DISCARD", "ECHO", "EXEC", "EXISTS", "GET", "INCR", "INCRBY", "MULTI", "PING", "PTTL", "QUIT", "SET", "TTL"}
	got := Commands()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Commands() = %v, want %v", got, want)
	}

	if _, ok := Lookup([]byte("gEt")); !ok {
		t.Error("Lookup should be case-insensitive")
	}
}

func TestCommand_Keys(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"SET", cmd("k v PX 10"), []string{"k"}},
		{"DEL", cmd("a b c"), []string{"a", "b", "c"}},
		{"PING", nil, nil},
		{"ECHO", cmd("hello"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := Lookup([]byte(tt.name))
			args := make([][]byte, len(tt.args))
			for i, a := range tt.args {
				args[i] = []byte(a)
			}
			got := c.Keys(args)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Keys() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatch_ErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		frame []string
		want  ErrorKind
	}{
		{"unknown command", cmd("FLUSHALL"), KindUnknownCommand},
		{"GET without key", cmd("GET"), KindWrongArgs},
		{"GET with two keys", cmd("GET a b"), KindWrongArgs},
		{"SET missing value", cmd("SET k"), KindWrongArgs},
		{"SET unknown option", cmd("SET k v NX"), KindSyntax},
		{"SET EX without value", cmd("SET k v EX"), KindSyntax},
		{"SET EX and PX", cmd("SET k v EX 1 PX 1"), KindSyntax},
		{"SET zero PX", cmd("SET k v PX 0"), KindInvalidExpire},
		{"SET negative EX", cmd("SET k v EX -5"), KindInvalidExpire},
		{"SET non-numeric PX", cmd("SET k v PX soon"), KindInvalidExpire},
		{"SET huge EX", cmd("SET k v EX " + strconv.FormatInt(math.MaxInt64, 10)), KindInvalidExpire},
		{"INCRBY bad delta", cmd("INCRBY k x"), KindNotAnInteger},
		{"DECRBY min int", cmd("DECRBY k " + strconv.FormatInt(math.MinInt64, 10)), KindOutOfRange},
		{"EXEC without MULTI", cmd("EXEC"), KindNoMulti},
		{"DISCARD without MULTI", cmd("DISCARD"), KindNoMulti},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			frame := make([][]byte, len(tt.frame))
			for i, w := range tt.frame {
				frame[i] = []byte(w)
			}

			_, _, err := s.execute(frame)
			var ce *CommandError
			if !errors.As(err, &ce) {
				t.Fatalf("execute() error = %v, want *CommandError", err)
			}
			if ce.Kind != tt.want {
				t.Errorf("kind = %v, want %v (line %q)", ce.Kind, tt.want, ce.Line)
			}
		})
	}
}

func TestErrorLines(t *testing.T) {
	s, _ := newTestSession(t)

	expectReply(t, do(s, "get"), Error("ERR wrong number of arguments for 'get' command"))
	expectReply(t, do(s, "foo", "a", "b"), Error("ERR unknown command 'foo', with args beginning with: 'a' 'b' "))
	expectReply(t, do(s, "SET", "k", "v", "PX", "0"), Error("ERR invalid expire time in 'set' command"))
	expectReply(t, do(s, "EXEC"), Error("ERR EXEC without MULTI"))
}

// ============================================================
// String commands
// ============================================================

func TestSetGet(t *testing.T) {
	s, _ := newTestSession(t)

	expectReply(t, do(s, "SET", "foo", "bar"), OK)
	expectReply(t, do(s, "GET", "foo"), BulkString("bar"))
	expectReply(t, do(s, "get", "nothere"), NullBulk())

	expectReply(t, do(s, "SET", "empty", ""), OK)
	expectReply(t, do(s, "GET", "empty"), BulkString(""))
}

func TestSetPX(t *testing.T) {
	s, clock := newTestSession(t)

	expectReply(t, do(s, "SET", "lol", "bar", "PX", "5000"), OK)
	expectReply(t, do(s, "GET", "lol"), BulkString("bar"))
	expectReply(t, do(s, "PTTL", "lol"), Integer(5000))
	expectReply(t, do(s, "TTL", "lol"), Integer(5))

	clock.Advance(5 * time.Second)
	expectReply(t, do(s, "GET", "lol"), NullBulk())
	expectReply(t, do(s, "TTL", "lol"), Integer(-2))

	// A fresh SET after expiry creates a new entry without expiry.
	expectReply(t, do(s, "SET", "lol", "0"), OK)
	expectReply(t, do(s, "TTL", "lol"), Integer(-1))
}

func TestSetPX_FarFuture(t *testing.T) {
	s, clock := newTestSession(t)

	// now + ttl exceeds int64 nanoseconds; the key must still be live.
	expectReply(t, do(s, "SET", "k", "v", "PX", "9000000000000"), OK)
	expectReply(t, do(s, "GET", "k"), BulkString("v"))

	clock.Advance(365 * 24 * time.Hour)
	expectReply(t, do(s, "GET", "k"), BulkString("v"))
	if got := do(s, "PTTL", "k"); got.Type() != TypeInteger || got.Int() <= 0 {
		t.Errorf("PTTL k = %v, want a positive integer", got)
	}
}

func TestSetEX(t *testing.T) {
	s, clock := newTestSession(t)

	expectReply(t, do(s, "set", "k", "v", "ex", "2"), OK)
	clock.Advance(1999 * time.Millisecond)
	expectReply(t, do(s, "GET", "k"), BulkString("v"))
	clock.Advance(time.Millisecond)
	expectReply(t, do(s, "GET", "k"), NullBulk())
}

func TestIncr(t *testing.T) {
	s, clock := newTestSession(t)

	expectReply(t, do(s, "INCR", "counter"), Integer(1))
	expectReply(t, do(s, "INCR", "counter"), Integer(2))
	expectReply(t, do(s, "INCRBY", "counter", "10"), Integer(12))
	expectReply(t, do(s, "DECR", "counter"), Integer(11))
	expectReply(t, do(s, "DECRBY", "counter", "20"), Integer(-9))
	expectReply(t, do(s, "GET", "counter"), BulkString("-9"))

	expectReply(t, do(s, "SET", "text", "xyz"), OK)
	expectReply(t, do(s, "INCR", "text"), Error("ERR value is not an integer or out of range"))
	expectReply(t, do(s, "GET", "text"), BulkString("xyz"))

	expectReply(t, do(s, "SET", "max", strconv.FormatInt(math.MaxInt64, 10)), OK)
	expectReply(t, do(s, "INCR", "max"), Error("ERR increment or decrement would overflow"))

	// INCR keeps the expiry.
	expectReply(t, do(s, "SET", "ttl", "1", "PX", "1000"), OK)
	expectReply(t, do(s, "INCR", "ttl"), Integer(2))
	clock.Advance(time.Second)
	expectReply(t, do(s, "GET", "ttl"), NullBulk())
}

// ============================================================
// Key and connection commands
// ============================================================

func TestDelExists(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "SET", "a", "1")
	do(s, "SET", "b", "2")

	expectReply(t, do(s, "EXISTS", "a", "b", "c", "a"), Integer(3))
	expectReply(t, do(s, "DEL", "a", "c"), Integer(1))
	expectReply(t, do(s, "EXISTS", "a"), Integer(0))
}

func TestPingEchoQuit(t *testing.T) {
	s, _ := newTestSession(t)

	expectReply(t, do(s, "PING"), SimpleString("PONG"))
	expectReply(t, do(s, "PING", "hi"), BulkString("hi"))
	expectReply(t, do(s, "ECHO", "a\r\nb"), BulkString("a\r\nb"))

	if s.Quit() {
		t.Fatal("Quit() before QUIT")
	}
	expectReply(t, do(s, "QUIT"), OK)
	if !s.Quit() {
		t.Error("Quit() should be set after QUIT")
	}
}

// ============================================================
// Transactions
// ============================================================

func TestMulti_Exec(t *testing.T) {
	s, _ := newTestSession(t)

	expectReply(t, do(s, "MULTI"), OK)
	if !s.InMulti() {
		t.Fatal("InMulti() = false after MULTI")
	}
	expectReply(t, do(s, "SET", "foo", "41"), Queued)
	expectReply(t, do(s, "INCR", "foo"), Queued)
	expectReply(t, do(s, "GET", "foo"), Queued)

	// Nothing ran yet.
	if s.store.Exists("foo") {
		t.Fatal("queued SET ran before EXEC")
	}

	expectReply(t, do(s, "EXEC"), Array(OK, Integer(42), BulkString("42")))
	if s.InMulti() {
		t.Error("InMulti() = true after EXEC")
	}
}

func TestMulti_RuntimeErrorInPlace(t *testing.T) {
	s, _ := newTestSession(t)
	do(s, "SET", "text", "abc")

	do(s, "MULTI")
	do(s, "INCR", "text")
	do(s, "SET", "after", "1")

	expectReply(t, do(s, "EXEC"), Array(
		Error("ERR value is not an integer or out of range"),
		OK,
	))
	expectReply(t, do(s, "GET", "after"), BulkString("1"))
}

func TestMulti_QueueTimeErrorAborts(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "MULTI")
	expectReply(t, do(s, "SET", "a", "1"), Queued)
	expectReply(t, do(s, "GET"), Error("ERR wrong number of arguments for 'get' command"))
	expectReply(t, do(s, "NOPE"), Error("ERR unknown command 'NOPE', with args beginning with: "))

	expectReply(t, do(s, "EXEC"), Error("EXECABORT Transaction discarded because of previous errors."))
	if s.InMulti() {
		t.Error("InMulti() = true after aborted EXEC")
	}
	if s.store.Exists("a") {
		t.Error("aborted transaction must not run any command")
	}
}

func TestMulti_Nested(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "MULTI")
	expectReply(t, do(s, "MULTI"), Error("ERR MULTI calls can not be nested"))
	do(s, "SET", "a", "1")

	// A nested MULTI does not abort the transaction.
	expectReply(t, do(s, "EXEC"), Array(OK))
}

func TestMulti_Discard(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "MULTI")
	do(s, "SET", "a", "1")
	expectReply(t, do(s, "DISCARD"), OK)
	expectReply(t, do(s, "GET", "a"), NullBulk())
	expectReply(t, do(s, "DISCARD"), Error("ERR DISCARD without MULTI"))
}

func TestMulti_EmptyExec(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "MULTI")
	expectReply(t, do(s, "EXEC"), Array())
}

func TestMulti_QueuedArgsAreCopied(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "MULTI")
	frame := [][]byte{[]byte("SET"), []byte("k"), []byte("original")}
	s.Execute(frame)
	copy(frame[2], "clobber!")

	expectReply(t, do(s, "EXEC"), Array(OK))
	expectReply(t, do(s, "GET", "k"), BulkString("original"))
}

func TestSession_CloseDiscards(t *testing.T) {
	s, _ := newTestSession(t)

	do(s, "MULTI")
	do(s, "SET", "a", "1")
	s.Close()

	if s.InMulti() {
		t.Error("InMulti() = true after Close")
	}
	if s.store.Exists("a") {
		t.Error("Close must not run queued commands")
	}
}

func TestSession_PanicRecovered(t *testing.T) {
	s, _ := newTestSession(t)

	c := &Command{Name: "BOOM", MinArgs: 0, MaxArgs: 0, Handler: func(*Context, [][]byte) (Value, error) {
		panic("boom")
	}}
	register(c)
	defer delete(commandTable, "BOOM")

	expectReply(t, do(s, "BOOM"), Error("ERR internal error"))
	expectReply(t, do(s, "PING"), SimpleString("PONG"))
}

// Concurrent sessions incrementing the same key lose no updates.
func TestConcurrentIncr(t *testing.T) {
	store := memory.New()

	const sessions, perSession = 8, 250
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession(store, nil)
			for j := 0; j < perSession; j++ {
				if v := do(s, "INCR", "hits"); v.IsError() {
					t.Errorf("INCR = %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _ := store.Get("hits")
	if want := strconv.Itoa(sessions * perSession); string(v) != want {
		t.Errorf("hits = %s, want %s", v, want)
	}
}
