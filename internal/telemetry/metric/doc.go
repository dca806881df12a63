// Package metric provides Prometheus metrics for inkweld sync.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry with snapshot and sync counters, HTTP handler
//   - collector.go: Collector reporting local store totals at scrape time
//
// Metrics are exposed at /metrics in Prometheus format by `sync watch`.
package metric
