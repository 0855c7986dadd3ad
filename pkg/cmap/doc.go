// Package cmap provides a concurrent map for the kvmesh keyspace.
//
// Keys are strings spread over a power-of-two number of shards by a seeded
// murmur3 hash. Each shard has its own RWMutex, so operations on keys in
// different shards never contend.
//
//   - Single-key operations: Get, DeleteIf
//   - Multi-key critical sections: Lock returns a view holding the write
//     locks of every shard the keys map to, acquired in ascending order
//   - Shard walks: SweepShard and Stats lock one shard at a time
//
// Usage:
//
//	m := cmap.NewWithShards[*Entry](16)
//	l := m.Lock("a", "b")
//	defer l.Unlock()
//	v, ok := l.Get("a")
//
// Thread Safety:
//
// All operations are thread-safe. Reads use RLock, writes use Lock. A Locked
// view must only be used by the goroutine that created it.
package cmap
