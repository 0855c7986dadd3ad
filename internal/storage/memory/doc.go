// Package memory provides the in-memory keyspace for kvmesh.
//
// It stores string values with an optional absolute expiry in a sharded
// concurrent map (pkg/cmap), so operations on keys in different shards
// proceed independently.
//
// Features:
//
//   - Per-key atomicity: every operation holds only its key's shard lock
//   - Lazy expiry: every read path re-checks the expiry and deletes expired
//     entries it observes; an expired entry is never returned
//   - Atomic sections: Store.Atomic runs a function against a Txn view that
//     holds the locks of all shards the given keys map to
//   - Janitor: optional background sweep that bounds memory held by expired
//     entries nobody reads
//
// Thread Safety:
//
// All Store methods are safe for concurrent use. A Txn is only valid inside
// the Atomic callback that produced it.
package memory
