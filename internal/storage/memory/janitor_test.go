package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestJanitor_Sweep(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithShards(4))

	for i := 0; i < 20; i++ {
		s.Set(fmt.Sprintf("short:%d", i), []byte("x"), time.Second)
	}
	for i := 0; i < 5; i++ {
		s.Set(fmt.Sprintf("long:%d", i), []byte("x"), 0)
	}

	j := NewJanitor(s, time.Minute, 0, nil)
	if n := j.Sweep(); n != 0 {
		t.Errorf("Sweep() before expiry = %d, want 0", n)
	}

	clock.Advance(2 * time.Second)
	if n := j.Sweep(); n != 20 {
		t.Errorf("Sweep() = %d, want 20", n)
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
	if st := s.Stats(); st.ActiveExpired != 20 {
		t.Errorf("ActiveExpired = %d, want 20", st.ActiveExpired)
	}
}

func TestJanitor_Budget(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithShards(4))

	for i := 0; i < 30; i++ {
		s.Set(fmt.Sprintf("k:%d", i), []byte("x"), time.Millisecond)
	}
	clock.Advance(time.Second)

	j := NewJanitor(s, time.Minute, 7, nil)
	total := 0
	for pass := 0; pass < 10 && s.Len() > 0; pass++ {
		n := j.Sweep()
		if n > 7 {
			t.Fatalf("Sweep() removed %d, budget is 7", n)
		}
		total += n
	}
	if total != 30 {
		t.Errorf("removed %d entries in total, want 30", total)
	}
}

func TestJanitor_Run(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	s.Set("k", []byte("x"), time.Millisecond)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewJanitor(s, 5*time.Millisecond, 0, nil).Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after janitor ran", s.Len())
	}
}
