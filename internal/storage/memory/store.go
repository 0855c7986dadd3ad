// Package memory provides the in-memory keyspace for kvmesh.
package memory

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/yndnr/kvmesh-go/pkg/cmap"
)

// NoExpiry is the TTL reported for a key that never expires.
const NoExpiry time.Duration = -1

var (
	// ErrNotInteger is returned when a value cannot be parsed as a base-10 int64.
	ErrNotInteger = errors.New("memory: value is not an integer")
	// ErrOverflow is returned when an increment leaves the int64 range.
	ErrOverflow = errors.New("memory: increment would overflow")
)

// Entry is a stored value. Entries are never mutated after they are
// published to the map; writers replace them.
type Entry struct {
	Value []byte
	// ExpiresAt is the absolute expiry in Unix nanoseconds, 0 for none.
	ExpiresAt int64
}

func (e *Entry) expired(now int64) bool {
	return e.ExpiresAt != 0 && now >= e.ExpiresAt
}

// Keyspace is the set of operations commands run against. It is implemented
// by *Store (per-key locking) and *Txn (locks held for a whole batch).
type Keyspace interface {
	// Get returns the value for key. The returned slice must not be modified.
	Get(key string) ([]byte, bool)
	// Set stores value under key, replacing any value and expiry.
	// A ttl <= 0 means the entry never expires.
	Set(key string, value []byte, ttl time.Duration)
	// IncrBy adds delta to the integer stored under key, treating an absent
	// key as 0, and keeps the existing expiry.
	IncrBy(key string, delta int64) (int64, error)
	// Delete removes key and reports whether a live entry was removed.
	Delete(key string) bool
	// Exists reports whether key holds a live entry.
	Exists(key string) bool
	// TTL returns the remaining lifetime of key, or NoExpiry.
	// The boolean is false when the key does not exist.
	TTL(key string) (time.Duration, bool)
}

// Stats is a snapshot of store counters.
type Stats struct {
	Keys          int
	LazyExpired   uint64
	ActiveExpired uint64
	// ShardKeys holds the entry count of each map shard, indexed by shard.
	ShardKeys []int
}

// Store is the shared keyspace.
type Store struct {
	entries *cmap.Map[*Entry]
	clock   func() time.Time

	lazyExpired   atomic.Uint64
	activeExpired atomic.Uint64
}

var _ Keyspace = (*Store)(nil)

// Option configures the Store.
type Option func(*storeOptions)

type storeOptions struct {
	shards int
	clock  func() time.Time
}

// WithShards sets the number of map shards (rounded to the default if not a power of 2).
func WithShards(n int) Option {
	return func(o *storeOptions) {
		o.shards = n
	}
}

// WithClock sets the time source used for expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *storeOptions) {
		o.clock = clock
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	o := storeOptions{
		shards: cmap.DefaultShardCount,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		entries: cmap.NewWithShards[*Entry](o.shards),
		clock:   o.clock,
	}
}

func (s *Store) now() int64 {
	return s.clock().UnixNano()
}

// Atomic runs fn with the locks of every shard the keys map to. fn must only
// touch the given keys. Operations inside fn observe a single instant for
// expiry checks.
func (s *Store) Atomic(keys []string, fn func(tx *Txn)) {
	l := s.entries.Lock(keys...)
	defer l.Unlock()

	fn(&Txn{store: s, locked: l, now: s.now()})
}

func (s *Store) one(key string, fn func(tx *Txn)) {
	s.Atomic([]string{key}, fn)
}

// Get returns the live value for key, deleting the entry if it has expired.
func (s *Store) Get(key string) ([]byte, bool) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	now := s.now()
	if !e.expired(now) {
		return e.Value, true
	}
	if s.entries.DeleteIf(key, func(cur *Entry) bool { return cur.expired(now) }) {
		s.lazyExpired.Add(1)
	}
	return nil, false
}

// Set stores value under key.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.one(key, func(tx *Txn) { tx.Set(key, value, ttl) })
}

// IncrBy atomically adds delta to the integer under key.
func (s *Store) IncrBy(key string, delta int64) (n int64, err error) {
	s.one(key, func(tx *Txn) { n, err = tx.IncrBy(key, delta) })
	return n, err
}

// Delete removes key.
func (s *Store) Delete(key string) (ok bool) {
	s.one(key, func(tx *Txn) { ok = tx.Delete(key) })
	return ok
}

// Exists reports whether key holds a live entry.
func (s *Store) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// TTL returns the remaining lifetime of key.
func (s *Store) TTL(key string) (ttl time.Duration, ok bool) {
	s.one(key, func(tx *Txn) { ttl, ok = tx.TTL(key) })
	return ttl, ok
}

// Len returns the number of stored entries, including expired entries that
// have not been collected yet.
func (s *Store) Len() int {
	return s.entries.Count()
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	st := Stats{
		LazyExpired:   s.lazyExpired.Load(),
		ActiveExpired: s.activeExpired.Load(),
	}
	shards := s.entries.Stats()
	st.ShardKeys = make([]int, len(shards))
	for _, sh := range shards {
		st.ShardKeys[sh.Index] = sh.Count
		st.Keys += sh.Count
	}
	return st
}

// Flush removes every entry.
func (s *Store) Flush() {
	s.entries.Clear()
}

// shardCount and sweepShard back the Janitor.
func (s *Store) shardCount() int {
	return s.entries.ShardCount()
}

func (s *Store) sweepShard(i, budget int) int {
	now := s.now()
	n := s.entries.SweepShard(i, budget, func(_ string, e *Entry) bool {
		return e.expired(now)
	})
	s.activeExpired.Add(uint64(n))
	return n
}
