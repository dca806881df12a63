package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/serializer"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
	"github.com/bobbyquantum/inkweld-sub009/pkg/ydoc"
)

// SnapshotRepository is the local snapshot store.
type SnapshotRepository interface {
	PutSnapshot(ctx context.Context, rec *domain.SnapshotRecord) error

	// GetSnapshot returns nil, nil when id is unknown.
	GetSnapshot(ctx context.Context, id string) (*domain.SnapshotRecord, error)
	DeleteSnapshot(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id, remoteID string) error

	// List methods return records newest first, except ListUnsynced which
	// returns them oldest first.
	ListDocumentSnapshots(ctx context.Context, project domain.ProjectKey, documentID string) ([]*domain.SnapshotRecord, error)
	ListProjectSnapshots(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error)
	ListUnsynced(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error)
}

// SnapshotGateway is the remote snapshot mirror.
type SnapshotGateway interface {
	Create(ctx context.Context, project domain.ProjectKey, rec *domain.SnapshotRecord) (*domain.SnapshotRecord, error)
	List(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error)
	Preview(ctx context.Context, project domain.ProjectKey, id string) (*domain.SnapshotRecord, error)
	Delete(ctx context.Context, project domain.ProjectKey, id string) error
}

// DocumentProvider returns live documents by composite key
// ("username:slug:elementId"). ok is false when the document is not
// materialized; it never fails otherwise.
type DocumentProvider interface {
	GetDocument(compositeID string) (doc ydoc.Doc, ok bool)
}

// ElementResolver resolves element metadata of a project.
type ElementResolver interface {
	ElementType(ctx context.Context, project domain.ProjectKey, documentID string) (domain.ElementType, error)
	ElementName(ctx context.Context, project domain.ProjectKey, documentID string) (string, error)
}

// Connectivity reports whether the remote authority is reachable.
type Connectivity interface {
	Online() bool
}

// SnapshotServiceConfig holds the collaborators of a SnapshotService.
//
// Remote and Network may be nil for an offline-only service.
type SnapshotServiceConfig struct {
	Store      SnapshotRepository
	Remote     SnapshotGateway
	Documents  DocumentProvider
	Elements   ElementResolver
	Network    Connectivity
	Active     *ActiveProject
	Serializer *serializer.Serializer
	Metrics    *metric.Registry
	Logger     logger.Logger

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// SnapshotService creates, lists, restores and deletes snapshots.
type SnapshotService struct {
	store     SnapshotRepository
	remote    SnapshotGateway
	documents DocumentProvider
	elements  ElementResolver
	network   Connectivity
	active    *ActiveProject
	ser       *serializer.Serializer
	metrics   *metric.Registry
	logger    logger.Logger
	now       func() time.Time
}

// NewSnapshotService creates a SnapshotService.
func NewSnapshotService(cfg SnapshotServiceConfig) *SnapshotService {
	s := &SnapshotService{
		store:     cfg.Store,
		remote:    cfg.Remote,
		documents: cfg.Documents,
		elements:  cfg.Elements,
		network:   cfg.Network,
		active:    cfg.Active,
		ser:       cfg.Serializer,
		metrics:   metric.Or(cfg.Metrics),
		logger:    logger.Or(cfg.Logger).With("component", "snapshot"),
		now:       cfg.Now,
	}
	if s.active == nil {
		s.active = NewActiveProject()
	}
	if s.ser == nil {
		s.ser = serializer.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Active returns the project context the service works in.
func (s *SnapshotService) Active() *ActiveProject {
	return s.active
}

// online reports whether remote calls should be attempted.
func (s *SnapshotService) online() bool {
	return s.remote != nil && s.network != nil && s.network.Online()
}

func (s *SnapshotService) remoteFailed(op string, err error, args ...any) {
	s.metrics.RemoteFailures.WithLabelValues(op).Inc()
	s.logger.Warn("remote snapshot "+op+" failed", append(args, "error", err)...)
}

// ============================================================================
// Create
// ============================================================================

// Create captures the current state of documentID under name.
//
// The record is persisted locally before any remote attempt. When online,
// the record is then pushed to the remote; a remote failure leaves it
// unsynced and is only logged.
func (s *SnapshotService) Create(ctx context.Context, documentID, name, description string) (*domain.SnapshotRecord, error) {
	return s.create(ctx, documentID, name, description, metric.KindManual)
}

func (s *SnapshotService) create(ctx context.Context, documentID, name, description, kind string) (*domain.SnapshotRecord, error) {
	// 1. Resolve project and document
	project, err := s.active.Require()
	if err != nil {
		return nil, err
	}
	elementID := domain.ElementID(documentID)
	if elementID == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("document id is required")
	}

	etype, err := s.elementType(ctx, project, elementID)
	if err != nil {
		return nil, err
	}
	doc, err := s.loadDocument(project, elementID, etype)
	if err != nil {
		return nil, err
	}

	// 2. Capture content
	now := s.now()
	rec := &domain.SnapshotRecord{
		Project:     project,
		DocumentID:  elementID,
		Name:        name,
		Description: description,
		CreatedAt:   now.UTC(),
		SyncState:   domain.SyncStateUnsynced,
	}
	if doc.Has(ydoc.FragmentProseMirror) {
		frag := doc.XMLFragment(ydoc.FragmentProseMirror)
		rec.Content = s.ser.EncodeTree(frag)
		rec.WordCount = serializer.WordCount(frag)
	}
	if etype.IsStructured() {
		data, err := json.Marshal(serializer.MapToJSON(doc.Map(ydoc.MapWorldbuilding)))
		if err != nil {
			return nil, domain.ErrMalformedContent.WithDetails("encode map data").WithCause(err)
		}
		rec.MapData = data
	}

	rec.ID, err = domain.NewSnapshotID(project, elementID, now)
	if err != nil {
		return nil, err
	}

	// 3. Persist locally
	if err := s.store.PutSnapshot(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.SnapshotsCreated.WithLabelValues(kind).Inc()
	s.logger.Info("snapshot created",
		"project", project.String(),
		"document", elementID,
		"snapshot_id", rec.ID,
		"kind", kind,
	)

	// 4. Best-effort remote sync
	if s.online() {
		s.pushSnapshot(ctx, project, rec)
	}
	return rec, nil
}

// pushSnapshot uploads rec and marks it synced. rec is updated in place on
// success.
func (s *SnapshotService) pushSnapshot(ctx context.Context, project domain.ProjectKey, rec *domain.SnapshotRecord) bool {
	remote, err := s.remote.Create(ctx, project, rec)
	if err != nil {
		s.remoteFailed("create", err, "project", project.String(), "snapshot_id", rec.ID)
		return false
	}
	if err := s.store.MarkSynced(ctx, rec.ID, remote.RemoteID); err != nil {
		s.logger.Error("mark snapshot synced failed", "snapshot_id", rec.ID, "error", err)
		return false
	}
	rec.SyncState = domain.SyncStateSynced
	rec.RemoteID = remote.RemoteID
	return true
}

// CreateBulk snapshots every document in documentIDs under a shared
// "<prefix> <timestamp>" name. Failures are logged and skipped, so the
// result may be shorter than documentIDs.
func (s *SnapshotService) CreateBulk(ctx context.Context, documentIDs []string, namePrefix string) ([]*domain.SnapshotRecord, error) {
	if _, err := s.active.Require(); err != nil {
		return nil, err
	}
	name := namePrefix + " " + domain.HumanTimestamp(s.now())

	out := make([]*domain.SnapshotRecord, 0, len(documentIDs))
	for _, id := range documentIDs {
		rec, err := s.create(ctx, id, name, "", metric.KindBulk)
		if err != nil {
			s.logger.Warn("bulk snapshot failed", "document", id, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SnapshotService) elementType(ctx context.Context, project domain.ProjectKey, elementID string) (domain.ElementType, error) {
	if s.elements == nil {
		return domain.ElementItem, nil
	}
	return s.elements.ElementType(ctx, project, elementID)
}

// loadDocument fetches the live document and checks that the shared type
// holding its primary content is materialized.
func (s *SnapshotService) loadDocument(project domain.ProjectKey, elementID string, etype domain.ElementType) (ydoc.Doc, error) {
	key := domain.DocumentKey(project, elementID)
	if s.documents == nil {
		return nil, domain.ErrDocumentNotLoaded.WithDetails(key)
	}
	doc, ok := s.documents.GetDocument(key)
	if !ok || doc == nil {
		return nil, domain.ErrDocumentNotLoaded.WithDetails(key)
	}
	primary := ydoc.FragmentProseMirror
	if etype.IsStructured() {
		primary = ydoc.MapWorldbuilding
	}
	if !doc.Has(primary) {
		return nil, domain.ErrDocumentNotLoaded.WithDetails(key + ": no " + primary)
	}
	return doc, nil
}

// ============================================================================
// List
// ============================================================================

// List returns the snapshots of documentID, local and remote merged,
// newest first.
func (s *SnapshotService) List(ctx context.Context, documentID string) ([]domain.SnapshotEntry, error) {
	project, err := s.active.Require()
	if err != nil {
		return nil, err
	}
	elementID := domain.ElementID(documentID)

	local, err := s.store.ListDocumentSnapshots(ctx, project, elementID)
	if err != nil {
		return nil, err
	}
	remote := s.listRemote(ctx, project, func(r *domain.SnapshotRecord) bool {
		return domain.ElementID(r.DocumentID) == elementID
	})
	return mergeSnapshots(local, remote), nil
}

// ListProject returns every snapshot of the active project, local and
// remote merged, newest first.
func (s *SnapshotService) ListProject(ctx context.Context) ([]domain.SnapshotEntry, error) {
	project, err := s.active.Require()
	if err != nil {
		return nil, err
	}
	local, err := s.store.ListProjectSnapshots(ctx, project)
	if err != nil {
		return nil, err
	}
	return mergeSnapshots(local, s.listRemote(ctx, project, nil)), nil
}

// listRemote fetches remote records when online. Failures degrade to an
// empty result.
func (s *SnapshotService) listRemote(ctx context.Context, project domain.ProjectKey, keep func(*domain.SnapshotRecord) bool) []*domain.SnapshotRecord {
	if !s.online() {
		return nil
	}
	recs, err := s.remote.List(ctx, project)
	if err != nil {
		s.remoteFailed("list", err, "project", project.String())
		return nil
	}
	if keep == nil {
		return recs
	}
	out := recs[:0]
	for _, r := range recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// mergeSnapshots returns every local record plus the remote records no
// local record already mirrors, newest first.
func mergeSnapshots(local, remote []*domain.SnapshotRecord) []domain.SnapshotEntry {
	mirrored := make(map[string]bool, len(local))
	out := make([]domain.SnapshotEntry, 0, len(local)+len(remote))
	for _, r := range local {
		if r.RemoteID != "" {
			mirrored[r.RemoteID] = true
		}
		out = append(out, domain.SnapshotEntry{SnapshotRecord: *r, IsLocal: true, IsRemote: r.IsSynced()})
	}
	for _, r := range remote {
		id := r.RemoteID
		if id == "" {
			id = r.ID
		}
		if mirrored[id] {
			continue
		}
		mirrored[id] = true
		out = append(out, domain.SnapshotEntry{SnapshotRecord: *r, IsRemote: true})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ============================================================================
// Restore
// ============================================================================

// GetForRestore looks id up locally and, when online, remotely. It returns
// nil, nil when the snapshot exists nowhere.
func (s *SnapshotService) GetForRestore(ctx context.Context, id string) (*domain.SnapshotRecord, error) {
	rec, err := s.store.GetSnapshot(ctx, id)
	if err != nil || rec != nil {
		return rec, err
	}

	project, ok := s.active.Get()
	if !ok || !s.online() {
		return nil, nil
	}
	rec, err = s.remote.Preview(ctx, project, id)
	if errors.Is(err, domain.ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		s.remoteFailed("preview", err, "project", project.String(), "snapshot_id", id)
		return nil, nil
	}
	return rec, nil
}

// Restore applies snapshotID onto the live document documentID.
//
// The document id is checked before anything is touched. Tree content and
// map data are parsed first, then applied in one transaction of forward
// operations, so other replicas see a single update.
func (s *SnapshotService) Restore(ctx context.Context, documentID, snapshotID string) error {
	project, err := s.active.Require()
	if err != nil {
		return err
	}

	// 1. Load and check the snapshot
	rec, err := s.GetForRestore(ctx, snapshotID)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrSnapshotNotFound.WithDetails(snapshotID)
	}
	elementID := domain.ElementID(documentID)
	if domain.ElementID(rec.DocumentID) != elementID {
		return domain.ErrSnapshotMismatch.WithDetails(fmt.Sprintf("snapshot %s is for %s, not %s", snapshotID, rec.DocumentID, elementID))
	}

	etype, err := s.elementType(ctx, project, elementID)
	if err != nil {
		return err
	}
	applyTree := rec.HasContent()
	applyMap := etype.IsStructured() && rec.HasMapData()
	if !applyTree && !applyMap {
		return domain.ErrEmptySnapshot.WithDetails(snapshotID)
	}

	// 2. Parse before mutating
	if applyTree {
		if err := serializer.Validate(rec.Content); err != nil {
			return err
		}
	}
	var mapData map[string]any
	if applyMap {
		if err := json.Unmarshal(rec.MapData, &mapData); err != nil {
			return domain.ErrMalformedContent.WithDetails("map data").WithCause(err)
		}
	}

	doc, err := s.loadDocument(project, elementID, etype)
	if err != nil {
		return err
	}

	// 3. Apply
	err = doc.Transact(serializer.RestoreOrigin, func() error {
		if applyTree {
			if err := s.ser.DecodeTree(doc, doc.XMLFragment(ydoc.FragmentProseMirror), rec.Content); err != nil {
				return err
			}
		}
		if applyMap {
			return serializer.JSONToMap(doc, doc.Map(ydoc.MapWorldbuilding), mapData)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("snapshot restored",
		"project", project.String(),
		"document", elementID,
		"snapshot_id", snapshotID,
	)
	return nil
}

// ============================================================================
// Delete
// ============================================================================

// Delete removes a snapshot locally and, for synced records when online,
// remotely. A remote failure after a local delete is only logged. Ids
// unknown locally are deleted on the remote when online; a failure there
// is returned as ErrRemote, or ErrSnapshotNotFound when the remote has no
// such snapshot.
func (s *SnapshotService) Delete(ctx context.Context, id string) error {
	rec, err := s.store.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}

	if rec != nil {
		if err := s.store.DeleteSnapshot(ctx, id); err != nil {
			return err
		}
		if rec.IsSynced() && rec.RemoteID != "" && s.online() {
			if err := s.remote.Delete(ctx, rec.Project, rec.RemoteID); err != nil && !errors.Is(err, domain.ErrRemoteNotFound) {
				s.remoteFailed("delete", err, "project", rec.Project.String(), "snapshot_id", id)
			}
		}
		s.logger.Info("snapshot deleted", "snapshot_id", id)
		return nil
	}

	// Remote-only snapshot
	project, ok := s.active.Get()
	if !ok || !s.online() {
		return domain.ErrSnapshotNotFound.WithDetails(id)
	}
	if err := s.remote.Delete(ctx, project, id); err != nil {
		if errors.Is(err, domain.ErrRemoteNotFound) {
			return domain.ErrSnapshotNotFound.WithDetails(id)
		}
		s.remoteFailed("delete", err, "project", project.String(), "snapshot_id", id)
		if errors.Is(err, domain.ErrRemote) {
			return err
		}
		return domain.ErrRemote.WithDetails(id).WithCause(err)
	}
	s.logger.Info("remote snapshot deleted", "project", project.String(), "snapshot_id", id)
	return nil
}

// ============================================================================
// Sync
// ============================================================================

// SyncPendingSnapshots pushes every unsynced record of the active project,
// oldest first, and returns how many reached the remote. It does nothing
// when offline or without an active project.
func (s *SnapshotService) SyncPendingSnapshots(ctx context.Context) (int, error) {
	project, ok := s.active.Get()
	if !ok || !s.online() {
		return 0, nil
	}
	recs, err := s.store.ListUnsynced(ctx, project)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if s.pushSnapshot(ctx, project, rec) {
			synced++
		}
	}
	if len(recs) > 0 {
		s.logger.Info("pending snapshots synced",
			"project", project.String(),
			"synced", synced,
			"pending", len(recs)-synced,
		)
	}
	return synced, nil
}
