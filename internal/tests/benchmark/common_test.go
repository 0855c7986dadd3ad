package benchmark

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

// KeyCounts defines the keyspace sizes for benchmarking.
var KeyCounts = []int{10000, 50000, 100000, 500000, 1000000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000, 100000}

// newKey generates a unique key.
func newKey() string {
	return "key:" + strings.ToLower(ulid.Make().String())
}

// prefillStore prefills a store with count keys holding 64-byte values.
func prefillStore(store *memory.Store, count int, ttl time.Duration) []string {
	value := []byte(strings.Repeat("v", 64))
	keys := make([]string, count)
	for i := range keys {
		keys[i] = newKey()
		store.Set(keys[i], value, ttl)
	}
	return keys
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function with various keyspace sizes.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
