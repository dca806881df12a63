package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreCounts are record totals reported by the local store.
type StoreCounts struct {
	Snapshots int
	Unsynced  int
	Pending   int
}

// CountSource supplies StoreCounts at scrape time.
type CountSource interface {
	Counts(ctx context.Context) (StoreCounts, error)
}

// Collector reports local store totals on every scrape.
type Collector struct {
	source  CountSource
	timeout time.Duration

	snapshots *prometheus.Desc
	unsynced  *prometheus.Desc
	pending   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from source.
func NewCollector(source CountSource) *Collector {
	return &Collector{
		source:  source,
		timeout: 5 * time.Second,
		snapshots: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "snapshots"),
			"Snapshot records in the local store.", nil, nil),
		unsynced: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "unsynced_snapshots"),
			"Local snapshot records not yet on the remote.", nil, nil),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "pending_operations"),
			"Pending project operations in the local store.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.snapshots
	ch <- c.unsynced
	ch <- c.pending
}

// Collect implements prometheus.Collector. A failing source reports nothing.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.source.Counts(ctx)
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.snapshots, prometheus.GaugeValue, float64(counts.Snapshots))
	ch <- prometheus.MustNewConstMetric(c.unsynced, prometheus.GaugeValue, float64(counts.Unsynced))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(counts.Pending))
}
