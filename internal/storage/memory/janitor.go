package memory

import (
	"context"
	"log/slog"
	"time"
)

// Default janitor settings.
const (
	DefaultJanitorInterval = 100 * time.Millisecond
	DefaultJanitorBudget   = 1000
)

// Janitor periodically removes expired entries that no read has touched.
// It is an optimization that bounds memory; correctness relies on the lazy
// checks in every read path.
type Janitor struct {
	store    *Store
	interval time.Duration
	budget   int
	logger   *slog.Logger

	// cursor is the shard the next pass starts at.
	cursor int
}

// NewJanitor creates a janitor for s. A non-positive budget means "no limit
// per pass".
func NewJanitor(s *Store, interval time.Duration, budget int, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:    s,
		interval: interval,
		budget:   budget,
		logger:   logger,
	}
}

// Sweep runs one pass. It visits shards round-robin from where the previous
// pass stopped until the budget is spent or every shard was visited once.
// It returns the number of removed entries.
//
// Sweep is not safe for concurrent use; Run calls it from one goroutine.
func (j *Janitor) Sweep() int {
	shards := j.store.shardCount()
	removed := 0
	for visited := 0; visited < shards; visited++ {
		remaining := 0
		if j.budget > 0 {
			remaining = j.budget - removed
			if remaining <= 0 {
				break
			}
		}
		removed += j.store.sweepShard(j.cursor, remaining)
		j.cursor = (j.cursor + 1) % shards
	}
	return removed
}

// Run sweeps every interval until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Debug("expiry janitor started", "interval", j.interval, "budget", j.budget)
	for {
		select {
		case <-ctx.Done():
			j.logger.Debug("expiry janitor stopped")
			return
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("expired keys removed", "count", n)
			}
		}
	}
}
