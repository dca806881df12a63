package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/storage"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
)

// PendingRepository stores pending project operations and the project
// cache.
type PendingRepository interface {
	ListPending(ctx context.Context) ([]*domain.PendingOperation, error)
	GetPending(ctx context.Context, key domain.ProjectKey) (*domain.PendingOperation, error)

	// PutPending stores op; an empty op deletes the record.
	PutPending(ctx context.Context, op *domain.PendingOperation) error
	DeletePending(ctx context.Context, key domain.ProjectKey) error

	GetProject(ctx context.Context, key domain.ProjectKey) (*domain.Project, error)
	PutProject(ctx context.Context, p *domain.Project) error
	DeleteProject(ctx context.Context, key domain.ProjectKey, opts storage.DeleteOptions) error
	MigrateProject(ctx context.Context, from, to domain.ProjectKey) error
}

// ProjectGateway is the remote project authority.
type ProjectGateway interface {
	Create(ctx context.Context, payload domain.ProjectPayload) (*domain.Project, error)
	Get(ctx context.Context, key domain.ProjectKey) (*domain.Project, error)
	Update(ctx context.Context, key domain.ProjectKey, project *domain.Project) (*domain.Project, error)
	CheckTombstones(ctx context.Context, keys []domain.ProjectKey) ([]domain.Tombstone, error)
}

// SnapshotSyncer pushes unsynced snapshots after a project pass.
type SnapshotSyncer interface {
	SyncPendingSnapshots(ctx context.Context) (int, error)
}

// SyncReport describes one sync pass.
type SyncReport struct {
	PassID string `json:"pass_id,omitempty"`

	// Ran is false when the pass did not start: offline, or another pass
	// was in flight.
	Ran bool `json:"ran"`

	Created    int `json:"created"`
	Tombstoned int `json:"tombstoned"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`

	// Remaining is the number of pending records left after the pass.
	Remaining int `json:"remaining"`
}

// OK reports whether the pass ran and every item succeeded.
func (r *SyncReport) OK() bool {
	return r.Ran && r.Failed == 0
}

// SyncCoordinator reconciles pending project creations and metadata edits
// with the remote authority. At most one pass runs at a time.
type SyncCoordinator struct {
	store     PendingRepository
	remote    ProjectGateway
	network   Connectivity
	snapshots SnapshotSyncer
	metrics   *metric.Registry
	logger    logger.Logger
	now       func() time.Time

	running atomic.Bool
}

// NewSyncCoordinator creates a coordinator. snapshots may be nil.
func NewSyncCoordinator(store PendingRepository, remote ProjectGateway, network Connectivity, snapshots SnapshotSyncer, metrics *metric.Registry, log logger.Logger) *SyncCoordinator {
	return &SyncCoordinator{
		store:     store,
		remote:    remote,
		network:   network,
		snapshots: snapshots,
		metrics:   metric.Or(metrics),
		logger:    logger.Or(log).With("component", "sync"),
		now:       time.Now,
	}
}

// ============================================================================
// Queueing
// ============================================================================

// QueueCreation records a project created while offline. The project is
// cached locally so it can be worked on before the remote knows it.
func (c *SyncCoordinator) QueueCreation(ctx context.Context, payload domain.ProjectPayload) error {
	key := domain.ProjectKey{Username: payload.Username, Slug: payload.Slug}
	if key.Username == "" || key.Slug == "" {
		return domain.ErrInvalidArgument.WithDetails("project username and slug are required")
	}

	op, err := c.store.GetPending(ctx, key)
	if err != nil {
		return err
	}
	if op == nil {
		op = &domain.PendingOperation{Project: key}
	}
	op.PendingCreation = &payload
	if err := c.store.PutPending(ctx, op); err != nil {
		return err
	}

	cached, err := c.store.GetProject(ctx, key)
	if err != nil {
		return err
	}
	if cached == nil {
		now := c.now().UTC()
		cached = &domain.Project{
			Username:    payload.Username,
			Slug:        payload.Slug,
			Title:       payload.Title,
			Description: payload.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := c.store.PutProject(ctx, cached); err != nil {
			return err
		}
	}
	c.logger.Info("project creation queued", "project", key.String())
	return nil
}

// QueueMetadata records an offline metadata edit, merged over any edit
// already pending for key.
func (c *SyncCoordinator) QueueMetadata(ctx context.Context, key domain.ProjectKey, patch *domain.ProjectPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	op, err := c.store.GetPending(ctx, key)
	if err != nil {
		return err
	}
	if op == nil {
		op = &domain.PendingOperation{Project: key}
	}
	op.PendingMetadata = op.PendingMetadata.Merge(patch)
	if err := c.store.PutPending(ctx, op); err != nil {
		return err
	}
	c.logger.Info("project metadata queued", "project", key.String())
	return nil
}

// ============================================================================
// Sync pass
// ============================================================================

// SyncPendingItems runs one pass. It returns immediately with Ran false
// when offline or when another pass is running.
//
// Pending creations are first checked against the remote tombstone
// registry; tombstoned projects are deleted locally and never created.
// Failed items keep their pending record with LastError set and are
// retried on the next pass.
func (c *SyncCoordinator) SyncPendingItems(ctx context.Context) *SyncReport {
	report := &SyncReport{}
	if c.network != nil && !c.network.Online() {
		c.metrics.SyncPasses.WithLabelValues(metric.ResultSkipped).Inc()
		return report
	}
	if !c.running.CompareAndSwap(false, true) {
		c.metrics.SyncPasses.WithLabelValues(metric.ResultSkipped).Inc()
		return report
	}
	defer c.running.Store(false)

	report.Ran = true
	report.PassID = uuid.NewString()
	ctx = logger.WithPassID(logger.WithLogger(ctx, c.logger), report.PassID)
	log := logger.L(ctx)

	defer func() {
		result := metric.ResultOK
		if report.Failed > 0 {
			result = metric.ResultFailed
		}
		c.metrics.SyncPasses.WithLabelValues(result).Inc()
	}()

	ops, err := c.store.ListPending(ctx)
	if err != nil {
		log.Error("list pending operations failed", "error", err)
		report.Failed++
		return report
	}

	// 1. Tombstone check for pending creations
	var creationKeys []domain.ProjectKey
	for _, op := range ops {
		if op.PendingCreation != nil {
			creationKeys = append(creationKeys, op.Project)
		}
	}
	tombstoned := c.checkTombstones(ctx, creationKeys)

	// 2. Creations
	for _, op := range ops {
		if op.PendingCreation == nil {
			continue
		}
		if tombstoned[op.Project] {
			c.dropTombstoned(ctx, op, report)
			continue
		}
		c.syncCreation(ctx, op, report)
	}

	// 3. Metadata edits
	for _, op := range ops {
		if op.PendingMetadata.IsEmpty() || op.PendingCreation != nil || tombstoned[op.Project] {
			continue
		}
		c.syncMetadata(ctx, op, report)
	}

	// 4. Report
	if remaining, err := c.store.ListPending(ctx); err == nil {
		report.Remaining = len(remaining)
		c.metrics.PendingItems.Set(float64(len(remaining)))
	}
	if report.Created+report.Tombstoned+report.Updated+report.Failed > 0 {
		log.Info("sync pass finished",
			"created", report.Created,
			"tombstoned", report.Tombstoned,
			"updated", report.Updated,
			"failed", report.Failed,
			"remaining", report.Remaining,
		)
	}
	return report
}

// checkTombstones returns the keys deleted on the remote. A failed check
// is logged and treated as "none deleted".
func (c *SyncCoordinator) checkTombstones(ctx context.Context, keys []domain.ProjectKey) map[domain.ProjectKey]bool {
	if len(keys) == 0 {
		return nil
	}
	tombstones, err := c.remote.CheckTombstones(ctx, keys)
	if err != nil {
		c.metrics.RemoteFailures.WithLabelValues("tombstones").Inc()
		logger.L(ctx).Warn("tombstone check failed, syncing creations anyway", "projects", len(keys), "error", err)
		return nil
	}
	out := make(map[domain.ProjectKey]bool, len(tombstones))
	for _, t := range tombstones {
		out[t.Key()] = true
	}
	return out
}

func (c *SyncCoordinator) dropTombstoned(ctx context.Context, op *domain.PendingOperation, report *SyncReport) {
	log := logger.L(logger.WithProject(ctx, op.Project.String()))
	if err := c.store.DeleteProject(ctx, op.Project, storage.DeleteOptions{SkipTombstone: true}); err != nil {
		log.Error("delete tombstoned project failed", "error", err)
		report.Failed++
		return
	}
	log.Info("project deleted remotely, local copy removed")
	report.Tombstoned++
}

func (c *SyncCoordinator) syncCreation(ctx context.Context, op *domain.PendingOperation, report *SyncReport) {
	log := logger.L(logger.WithProject(ctx, op.Project.String()))

	created, err := c.remote.Create(ctx, *op.PendingCreation)
	if err != nil {
		c.fail(ctx, op, "create", err, report)
		return
	}

	if err := c.storeAuthoritative(ctx, op, created); err != nil {
		log.Error("cache created project failed", "error", err)
		report.Failed++
		return
	}
	op.PendingCreation = nil
	op.LastError = ""
	if err := c.store.PutPending(ctx, op); err != nil {
		log.Error("clear pending creation failed", "error", err)
	}
	log.Info("pending project created on remote")
	report.Created++
}

func (c *SyncCoordinator) syncMetadata(ctx context.Context, op *domain.PendingOperation, report *SyncReport) {
	log := logger.L(logger.WithProject(ctx, op.Project.String()))

	current, err := c.remote.Get(ctx, op.Project)
	if errors.Is(err, domain.ErrRemoteNotFound) {
		op.PendingMetadata = nil
		op.LastError = ""
		if err := c.store.PutPending(ctx, op); err != nil {
			log.Error("clear pending metadata failed", "error", err)
		}
		log.Info("project no longer on remote, metadata edit dropped")
		return
	}
	if err != nil {
		c.fail(ctx, op, "get", err, report)
		return
	}

	op.PendingMetadata.Apply(current)
	updated, err := c.remote.Update(ctx, op.Project, current)
	if err != nil {
		c.fail(ctx, op, "update", err, report)
		return
	}

	if err := c.storeAuthoritative(ctx, op, updated); err != nil {
		log.Error("cache updated project failed", "error", err)
		report.Failed++
		return
	}
	op.PendingMetadata = nil
	op.LastError = ""
	if err := c.store.PutPending(ctx, op); err != nil {
		log.Error("clear pending metadata failed", "error", err)
	}
	log.Info("pending metadata pushed to remote")
	report.Updated++
}

// storeAuthoritative caches the remote's project record and, when the
// remote assigned a different key, moves local state to it. op.Project is
// updated to the new key.
func (c *SyncCoordinator) storeAuthoritative(ctx context.Context, op *domain.PendingOperation, project *domain.Project) error {
	key := project.Key()
	if key.IsZero() {
		key = op.Project
		project.Username, project.Slug = key.Username, key.Slug
	}
	if key != op.Project {
		if err := c.store.MigrateProject(ctx, op.Project, key); err != nil {
			return err
		}
		logger.L(ctx).Info("project moved", "from", op.Project.String(), "to", key.String())
		op.Project = key
		if op.PendingCreation != nil {
			op.PendingCreation.Username, op.PendingCreation.Slug = key.Username, key.Slug
		}
	}

	if len(project.Elements) == 0 {
		cached, err := c.store.GetProject(ctx, key)
		if err != nil {
			return err
		}
		if cached != nil {
			project.Elements = cached.Elements
		}
	}
	return c.store.PutProject(ctx, project)
}

func (c *SyncCoordinator) fail(ctx context.Context, op *domain.PendingOperation, stage string, err error, report *SyncReport) {
	report.Failed++
	c.metrics.RemoteFailures.WithLabelValues("project_" + stage).Inc()
	logger.L(logger.WithProject(ctx, op.Project.String())).Warn("pending project sync failed", "stage", stage, "error", err)

	op.LastError = err.Error()
	if perr := c.store.PutPending(ctx, op); perr != nil {
		logger.L(ctx).Error("record sync error failed", "project", op.Project.String(), "error", perr)
	}
}

// ============================================================================
// Loop
// ============================================================================

// Run runs a pass, followed by a snapshot push, on every trigger and every
// poll tick until ctx is done. A zero poll disables the ticker.
func (c *SyncCoordinator) Run(ctx context.Context, triggers <-chan struct{}, poll time.Duration) {
	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			c.RunOnce(ctx)
		case <-tick:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs one project pass and then pushes unsynced snapshots.
func (c *SyncCoordinator) RunOnce(ctx context.Context) *SyncReport {
	report := c.SyncPendingItems(ctx)
	if !report.Ran || c.snapshots == nil {
		return report
	}
	if n, err := c.snapshots.SyncPendingSnapshots(ctx); err != nil {
		c.logger.Warn("snapshot push failed", "pass_id", report.PassID, "error", err)
	} else if n > 0 {
		c.logger.Debug("snapshots pushed", "pass_id", report.PassID, "count", n)
	}
	return report
}
