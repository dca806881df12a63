package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/serializer"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
	"github.com/bobbyquantum/inkweld-sub009/pkg/ydoc"
)

const (
	DefaultAutoSnapshotThrottle  = 5 * time.Minute
	DefaultAutoSnapshotRetention = 10
)

// AutoSnapshotConfig configures the scheduler.
type AutoSnapshotConfig struct {
	// Throttle is the minimum time between two automatic snapshots of one
	// document. Default: 5m.
	Throttle time.Duration

	// Retention is how many automatic snapshots are kept per document.
	// Default: 10.
	Retention int

	// Enabled starts the scheduler enabled.
	Enabled bool
}

// AutoSnapshotResult counts the outcome of one scheduling pass.
type AutoSnapshotResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// AutoSnapshotScheduler tracks edited documents and turns them into
// throttled automatic snapshots, pruning old ones per document.
type AutoSnapshotScheduler struct {
	snapshots *SnapshotService
	elements  ElementResolver
	active    *ActiveProject
	cfg       AutoSnapshotConfig
	metrics   *metric.Registry
	logger    logger.Logger
	now       func() time.Time

	enabled atomic.Bool

	mu       sync.Mutex
	dirty    map[string]struct{}
	lastAuto map[string]time.Time // keyed by composite document key

	runMu  sync.Mutex
	pruneW sync.WaitGroup
}

// NewAutoSnapshotScheduler creates a scheduler creating snapshots through
// snapshots. Switching the active project clears the dirty set.
func NewAutoSnapshotScheduler(snapshots *SnapshotService, elements ElementResolver, cfg AutoSnapshotConfig, metrics *metric.Registry, log logger.Logger) *AutoSnapshotScheduler {
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultAutoSnapshotThrottle
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultAutoSnapshotRetention
	}
	a := &AutoSnapshotScheduler{
		snapshots: snapshots,
		elements:  elements,
		active:    snapshots.Active(),
		cfg:       cfg,
		metrics:   metric.Or(metrics),
		logger:    logger.Or(log).With("component", "autosnapshot"),
		now:       snapshots.now,
		dirty:     make(map[string]struct{}),
		lastAuto:  make(map[string]time.Time),
	}
	a.enabled.Store(cfg.Enabled)
	a.active.OnChange(func(domain.ProjectKey) { a.ClearDirty() })
	return a
}

// SetEnabled turns automatic snapshots on or off.
func (a *AutoSnapshotScheduler) SetEnabled(on bool) {
	if a.enabled.Swap(on) != on {
		a.logger.Info("auto snapshots toggled", "enabled", on)
	}
}

// Enabled reports whether automatic snapshots are on.
func (a *AutoSnapshotScheduler) Enabled() bool {
	return a.enabled.Load()
}

// ============================================================================
// Dirty tracking
// ============================================================================

// MarkDirty records an edit of id. Composite document keys are reduced to
// their element id.
func (a *AutoSnapshotScheduler) MarkDirty(id string) {
	elementID := domain.ElementID(id)
	if elementID == "" {
		return
	}
	a.mu.Lock()
	a.dirty[elementID] = struct{}{}
	a.mu.Unlock()
}

// ClearDirty forgets every pending edit.
func (a *AutoSnapshotScheduler) ClearDirty() {
	a.mu.Lock()
	clear(a.dirty)
	a.mu.Unlock()
}

// Dirty returns the dirty element ids, sorted.
func (a *AutoSnapshotScheduler) Dirty() []string {
	a.mu.Lock()
	out := make([]string, 0, len(a.dirty))
	for id := range a.dirty {
		out = append(out, id)
	}
	a.mu.Unlock()
	sort.Strings(out)
	return out
}

// DirtyCount returns how many documents have unsnapshotted edits.
func (a *AutoSnapshotScheduler) DirtyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.dirty)
}

func (a *AutoSnapshotScheduler) clearProcessed(ids []string) {
	a.mu.Lock()
	for _, id := range ids {
		delete(a.dirty, id)
	}
	a.mu.Unlock()
}

// ============================================================================
// Scheduling
// ============================================================================

// CreateAutoSnapshots snapshots every dirty document whose previous
// automatic snapshot is older than the throttle window. Every document
// the pass reaches leaves the dirty set, whatever its outcome; documents
// left unvisited by a cancelled ctx stay dirty. Pruning is started in the
// background afterwards.
func (a *AutoSnapshotScheduler) CreateAutoSnapshots(ctx context.Context) AutoSnapshotResult {
	var result AutoSnapshotResult
	if !a.Enabled() {
		return result
	}
	project, ok := a.active.Get()
	if !ok {
		return result
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()

	ids := a.Dirty()
	if len(ids) == 0 {
		return result
	}

	visited := make([]string, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		key := domain.DocumentKey(project, id)
		now := a.now()

		a.mu.Lock()
		last, seen := a.lastAuto[key]
		a.mu.Unlock()
		if seen && now.Sub(last) < a.cfg.Throttle {
			visited = append(visited, id)
			result.Skipped++
			a.metrics.AutoSnapshotsSkipped.Inc()
			continue
		}

		name := domain.AutoSnapshotName(a.displayName(ctx, project, id), now)
		if _, err := a.snapshots.create(ctx, id, name, "", metric.KindAuto); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-create; the edit is still unsnapshotted.
				break
			}
			visited = append(visited, id)
			result.Failed++
			a.logger.Warn("auto snapshot failed",
				"project", project.String(),
				"document", id,
				"error", err,
			)
			continue
		}
		a.mu.Lock()
		a.lastAuto[key] = now
		a.mu.Unlock()
		visited = append(visited, id)
		result.Created++
	}
	a.clearProcessed(visited)

	a.logger.Debug("auto snapshot pass",
		"project", project.String(),
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	pruneCtx := context.WithoutCancel(ctx)
	a.pruneW.Add(1)
	go func() {
		defer a.pruneW.Done()
		if _, err := a.Prune(pruneCtx); err != nil {
			a.logger.Warn("auto snapshot pruning failed", "project", project.String(), "error", err)
		}
	}()
	return result
}

func (a *AutoSnapshotScheduler) displayName(ctx context.Context, project domain.ProjectKey, id string) string {
	if a.elements == nil {
		return id
	}
	name, err := a.elements.ElementName(ctx, project, id)
	if err != nil || name == "" {
		return id
	}
	return name
}

// Prune deletes automatic snapshots beyond the retention count of each
// document of the active project, oldest first. Manual snapshots are never
// touched. Individual failures are logged and skipped.
func (a *AutoSnapshotScheduler) Prune(ctx context.Context) (int, error) {
	entries, err := a.snapshots.ListProject(ctx)
	if err != nil {
		return 0, err
	}

	// entries are newest first, so each group is too
	groups := make(map[string][]domain.SnapshotEntry)
	var order []string
	for _, e := range entries {
		if !e.IsAuto() {
			continue
		}
		doc := domain.ElementID(e.DocumentID)
		if _, ok := groups[doc]; !ok {
			order = append(order, doc)
		}
		groups[doc] = append(groups[doc], e)
	}

	removed := 0
	for _, doc := range order {
		group := groups[doc]
		for i := len(group) - 1; i >= a.cfg.Retention; i-- {
			if err := a.snapshots.Delete(ctx, group[i].ID); err != nil {
				a.logger.Warn("prune auto snapshot failed",
					"document", doc,
					"snapshot_id", group[i].ID,
					"error", err,
				)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		a.metrics.SnapshotsPruned.Add(float64(removed))
		a.logger.Info("auto snapshots pruned", "removed", removed)
	}
	return removed, nil
}

// Wait blocks until background pruning started by CreateAutoSnapshots has
// finished.
func (a *AutoSnapshotScheduler) Wait() {
	a.pruneW.Wait()
}

// ============================================================================
// Loops
// ============================================================================

// Run marks documents from events dirty and runs a pass every throttle
// interval until ctx is done or events is closed.
func (a *AutoSnapshotScheduler) Run(ctx context.Context, events <-chan string) {
	ticker := time.NewTicker(a.cfg.Throttle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-events:
			if !ok {
				return
			}
			a.MarkDirty(id)
		case <-ticker.C:
			a.CreateAutoSnapshots(ctx)
		}
	}
}

// WatchDocument marks compositeID dirty on every local update of doc.
// Updates applied by a snapshot restore are ignored.
func (a *AutoSnapshotScheduler) WatchDocument(doc ydoc.Doc, compositeID string) (unsubscribe func()) {
	return doc.OnUpdate(func(u ydoc.Update) {
		if u.Origin == serializer.RestoreOrigin || len(u.Ops) == 0 {
			return
		}
		a.MarkDirty(compositeID)
	})
}
