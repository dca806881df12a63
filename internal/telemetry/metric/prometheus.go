// Package metric provides Prometheus metrics for inkweld sync.
//
// It exposes metrics in Prometheus format for monitoring snapshot
// creation, remote failures, pruning and sync passes.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkweld"

// Snapshot kinds for SnapshotsCreated.
const (
	KindManual = "manual"
	KindAuto   = "auto"
	KindBulk   = "bulk"
	KindImport = "import"
)

// Sync pass results for SyncPasses.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Snapshot metrics
	SnapshotsCreated     *prometheus.CounterVec
	RemoteFailures       *prometheus.CounterVec
	AutoSnapshotsSkipped prometheus.Counter
	SnapshotsPruned      prometheus.Counter

	// Sync metrics
	SyncPasses   *prometheus.CounterVec
	PendingItems prometheus.Gauge
}

// NewRegistry creates a metrics registry with every application metric
// and the Go runtime collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		SnapshotsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_created_total",
			Help:      "Snapshots persisted locally, by kind.",
		}, []string{"kind"}),
		RemoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_remote_failures_total",
			Help:      "Remote snapshot gateway calls that failed, by operation.",
		}, []string{"op"}),
		AutoSnapshotsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_snapshots_skipped_total",
			Help:      "Dirty documents skipped by the auto-snapshot throttle.",
		}),
		SnapshotsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_pruned_total",
			Help:      "Automatic snapshots deleted by retention pruning.",
		}),
		SyncPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_passes_total",
			Help:      "Background sync passes, by result.",
		}, []string{"result"}),
		PendingItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_pending_items",
			Help:      "Pending project operations awaiting the remote authority.",
		}),
	}

	r.registry.MustRegister(
		r.SnapshotsCreated,
		r.RemoteFailures,
		r.AutoSnapshotsSkipped,
		r.SnapshotsPruned,
		r.SyncPasses,
		r.PendingItems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registerer exposes the underlying registry for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler for the /metrics endpoint of the global
// registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Or returns r, or the global registry when r is nil.
func Or(r *Registry) *Registry {
	if r == nil {
		return Global()
	}
	return r
}
