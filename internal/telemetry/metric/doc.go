// Package metric provides Prometheus metrics for kvmesh.
//
//   - prometheus.go: the Registry, its metrics and the HTTP handler
//   - collector.go: a collector that reads keyspace statistics on scrape
//
// Metrics are exposed at /metrics on the admin listener.
package metric
