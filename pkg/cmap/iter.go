package cmap

// SweepShard deletes entries of shard i for which pred returns true,
// stopping after budget deletions. A budget <= 0 means no limit.
// It returns the number of deleted entries.
func (m *Map[V]) SweepShard(i int, budget int, pred func(key string, value V) bool) int {
	if i < 0 || i >= len(m.shards) {
		return 0
	}
	shard := m.shards[i]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	removed := 0
	for k, v := range shard.items {
		if budget > 0 && removed >= budget {
			break
		}
		if pred(k, v) {
			delete(shard.items, k)
			removed++
		}
	}
	return removed
}

// ShardStats describes the population of one shard.
type ShardStats struct {
	Index int
	Count int
}

// Stats returns statistics about all shards.
func (m *Map[V]) Stats() []ShardStats {
	stats := make([]ShardStats, len(m.shards))
	for i, shard := range m.shards {
		shard.mu.RLock()
		stats[i] = ShardStats{
			Index: i,
			Count: len(shard.items),
		}
		shard.mu.RUnlock()
	}
	return stats
}
