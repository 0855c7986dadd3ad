package metric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

// StatsSource is what the store collector reads on every scrape.
type StatsSource interface {
	Stats() memory.Stats
}

// StoreCollector exports keyspace statistics.
type StoreCollector struct {
	src StatsSource

	keys          *prometheus.Desc
	shardKeys     *prometheus.Desc
	lazyExpired   *prometheus.Desc
	activeExpired *prometheus.Desc
}

// NewStoreCollector creates a collector reading from src.
func NewStoreCollector(src StatsSource) *StoreCollector {
	return &StoreCollector{
		src: src,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "keys"),
			"Number of stored keys, including expired keys not yet collected.",
			nil, nil),
		shardKeys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "shard_keys"),
			"Number of stored keys per map shard.",
			[]string{"shard"}, nil),
		lazyExpired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "expired_lazy_total"),
			"Expired keys removed by a read.",
			nil, nil),
		activeExpired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "expired_active_total"),
			"Expired keys removed by the janitor.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.shardKeys
	ch <- c.lazyExpired
	ch <- c.activeExpired
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.Keys))
	for i, n := range st.ShardKeys {
		ch <- prometheus.MustNewConstMetric(c.shardKeys, prometheus.GaugeValue, float64(n), strconv.Itoa(i))
	}
	ch <- prometheus.MustNewConstMetric(c.lazyExpired, prometheus.CounterValue, float64(st.LazyExpired))
	ch <- prometheus.MustNewConstMetric(c.activeExpired, prometheus.CounterValue, float64(st.ActiveExpired))
}
