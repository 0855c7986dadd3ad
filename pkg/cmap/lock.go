package cmap

import (
	"slices"
	"strconv"
)

// Locked is a view of a Map whose shards for a fixed key set are held under
// their write locks. Every key passed to Get, Set or Delete must map to one
// of those shards.
type Locked[V any] struct {
	m    *Map[V]
	held []int
}

// Lock acquires the write locks of every shard the keys map to, in ascending
// shard order, and returns a view over them. The caller must call Unlock.
// Lock with no keys returns a view that holds nothing.
func (m *Map[V]) Lock(keys ...string) *Locked[V] {
	held := make([]int, 0, len(keys))
	for _, k := range keys {
		held = append(held, m.shardIndex(k))
	}
	slices.Sort(held)
	held = slices.Compact(held)

	for _, i := range held {
		m.shards[i].mu.Lock()
	}
	return &Locked[V]{m: m, held: held}
}

// Unlock releases the shard locks in reverse acquisition order.
// Calling Unlock more than once is a no-op.
func (l *Locked[V]) Unlock() {
	for i := len(l.held) - 1; i >= 0; i-- {
		l.m.shards[l.held[i]].mu.Unlock()
	}
	l.held = nil
}

func (l *Locked[V]) items(key string) map[string]V {
	i := l.m.shardIndex(key)
	if _, ok := slices.BinarySearch(l.held, i); !ok {
		panic("cmap: key " + strconv.Quote(key) + " is outside the locked shards")
	}
	return l.m.shards[i].items
}

// Get retrieves a value by key.
func (l *Locked[V]) Get(key string) (V, bool) {
	v, ok := l.items(key)[key]
	return v, ok
}

// Set stores a key-value pair.
func (l *Locked[V]) Set(key string, value V) {
	l.items(key)[key] = value
}

// Delete removes a key and reports whether it was present.
func (l *Locked[V]) Delete(key string) bool {
	items := l.items(key)
	_, ok := items[key]
	delete(items, key)
	return ok
}
