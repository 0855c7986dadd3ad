package memory

import (
	"math"
	"strconv"
	"time"

	"github.com/yndnr/kvmesh-go/pkg/cmap"
)

// Txn is a Keyspace view whose shard locks are already held.
// It is only valid inside the Store.Atomic callback that created it.
type Txn struct {
	store  *Store
	locked *cmap.Locked[*Entry]
	now    int64
}

var _ Keyspace = (*Txn)(nil)

// lookup returns the live entry for key, deleting it if expired.
func (tx *Txn) lookup(key string) (*Entry, bool) {
	e, ok := tx.locked.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(tx.now) {
		tx.locked.Delete(key)
		tx.store.lazyExpired.Add(1)
		return nil, false
	}
	return e, true
}

// Get returns the live value for key.
func (tx *Txn) Get(key string) ([]byte, bool) {
	e, ok := tx.lookup(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Set stores a copy of value under key, replacing any previous expiry.
func (tx *Txn) Set(key string, value []byte, ttl time.Duration) {
	e := &Entry{Value: make([]byte, len(value))}
	copy(e.Value, value)
	switch {
	case ttl <= 0:
	case int64(ttl) > math.MaxInt64-tx.now:
		// Saturate instead of wrapping into the past.
		e.ExpiresAt = math.MaxInt64
	default:
		e.ExpiresAt = tx.now + int64(ttl)
	}
	tx.locked.Set(key, e)
}

// IncrBy adds delta to the integer under key. On error the entry is unchanged.
func (tx *Txn) IncrBy(key string, delta int64) (int64, error) {
	var (
		cur       int64
		expiresAt int64
	)
	if e, ok := tx.lookup(key); ok {
		n, err := parseInt(e.Value)
		if err != nil {
			return 0, err
		}
		cur, expiresAt = n, e.ExpiresAt
	}

	if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
		return 0, ErrOverflow
	}

	next := cur + delta
	tx.locked.Set(key, &Entry{
		Value:     strconv.AppendInt(nil, next, 10),
		ExpiresAt: expiresAt,
	})
	return next, nil
}

// Delete removes key and reports whether a live entry was removed.
func (tx *Txn) Delete(key string) bool {
	if _, ok := tx.lookup(key); !ok {
		return false
	}
	return tx.locked.Delete(key)
}

// Exists reports whether key holds a live entry.
func (tx *Txn) Exists(key string) bool {
	_, ok := tx.lookup(key)
	return ok
}

// TTL returns the remaining lifetime of key, or NoExpiry.
func (tx *Txn) TTL(key string) (time.Duration, bool) {
	e, ok := tx.lookup(key)
	if !ok {
		return 0, false
	}
	if e.ExpiresAt == 0 {
		return NoExpiry, true
	}
	return time.Duration(e.ExpiresAt - tx.now), true
}

// parseInt parses a stored value as a base-10 int64. Leading '+', spaces and
// out-of-range values are rejected.
func parseInt(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 20 || b[0] == '+' {
		return 0, ErrNotInteger
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}
