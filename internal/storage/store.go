package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
)

// Key spaces.
const (
	prefixSnapshots  = "snapshots/"
	prefixPending    = "pending/"
	prefixProjects   = "projects/"
	prefixTombstones = "tombstones/"
)

// LocalStore persists snapshot records, pending operations, the project
// cache, and local tombstones on a KVEngine. Values are JSON.
//
// Every method is a single engine call or a single engine transaction, so
// callers never hold state across a store boundary.
type LocalStore struct {
	kv  KVEngine
	now func() time.Time
}

// NewLocalStore creates a store on kv.
func NewLocalStore(kv KVEngine) *LocalStore {
	return &LocalStore{kv: kv, now: time.Now}
}

// Engine returns the underlying KV engine.
func (s *LocalStore) Engine() KVEngine {
	return s.kv
}

// Close closes the underlying engine.
func (s *LocalStore) Close() error {
	return s.kv.Close()
}

func snapshotKey(id string) []byte {
	return []byte(prefixSnapshots + id)
}

func projectScopedKey(prefix string, key domain.ProjectKey) []byte {
	return []byte(prefix + key.String())
}

func storageErr(op string, err error) error {
	return domain.ErrStorage.WithDetails(op).WithCause(err)
}

// ============================================================================
// Snapshots
// ============================================================================

// PutSnapshot stores rec. Writing an id that already exists is allowed only
// when the captured content is unchanged; otherwise ErrSnapshotImmutable.
func (s *LocalStore) PutSnapshot(ctx context.Context, rec *domain.SnapshotRecord) error {
	if rec == nil || rec.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("snapshot id is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return storageErr("encode snapshot", err)
	}

	err = s.kv.Update(ctx, func(b Batch) error {
		raw, err := b.Get(snapshotKey(rec.ID))
		switch {
		case errors.Is(err, ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var existing domain.SnapshotRecord
			if err := json.Unmarshal(raw, &existing); err != nil {
				return err
			}
			if !existing.SameContent(rec) {
				return domain.ErrSnapshotImmutable.WithDetails(rec.ID)
			}
		}
		return b.Set(snapshotKey(rec.ID), data)
	})
	if err != nil {
		if domain.IsDomainError(err, "") {
			return err
		}
		return storageErr("put snapshot", err)
	}
	return nil
}

// GetSnapshot returns the record with id, or nil if absent.
func (s *LocalStore) GetSnapshot(ctx context.Context, id string) (*domain.SnapshotRecord, error) {
	raw, err := s.kv.Get(ctx, snapshotKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get snapshot", err)
	}
	var rec domain.SnapshotRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, storageErr("decode snapshot", err)
	}
	return &rec, nil
}

// DeleteSnapshot removes the record with id. Missing ids are not an error.
func (s *LocalStore) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, snapshotKey(id)); err != nil {
		return storageErr("delete snapshot", err)
	}
	return nil
}

// MarkSynced records the remote id of a snapshot. Content is untouched.
func (s *LocalStore) MarkSynced(ctx context.Context, id, remoteID string) error {
	err := s.kv.Update(ctx, func(b Batch) error {
		raw, err := b.Get(snapshotKey(id))
		if err != nil {
			return err
		}
		var rec domain.SnapshotRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		rec.SyncState = domain.SyncStateSynced
		rec.RemoteID = remoteID
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return b.Set(snapshotKey(id), data)
	})
	if errors.Is(err, ErrKeyNotFound) {
		return domain.ErrSnapshotNotFound.WithDetails(id)
	}
	if err != nil {
		return storageErr("mark synced", err)
	}
	return nil
}

// ListDocumentSnapshots returns the project's snapshots of one document,
// newest first.
func (s *LocalStore) ListDocumentSnapshots(ctx context.Context, project domain.ProjectKey, documentID string) ([]*domain.SnapshotRecord, error) {
	return s.scanSnapshots(ctx, domain.SnapshotIDPrefix(project, documentID), nil)
}

// ListProjectSnapshots returns every snapshot of the project, newest first.
func (s *LocalStore) ListProjectSnapshots(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error) {
	return s.scanSnapshots(ctx, domain.SnapshotIDPrefix(project, ""), nil)
}

// ListUnsynced returns the project's snapshots not yet on the remote,
// oldest first so they are pushed in creation order.
func (s *LocalStore) ListUnsynced(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error) {
	recs, err := s.scanSnapshots(ctx, domain.SnapshotIDPrefix(project, ""), func(r *domain.SnapshotRecord) bool {
		return !r.IsSynced()
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (s *LocalStore) scanSnapshots(ctx context.Context, idPrefix string, keep func(*domain.SnapshotRecord) bool) ([]*domain.SnapshotRecord, error) {
	var (
		out     []*domain.SnapshotRecord
		scanErr error
	)
	err := s.kv.Scan(ctx, []byte(prefixSnapshots+idPrefix), func(_, value []byte) bool {
		var rec domain.SnapshotRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			scanErr = err
			return false
		}
		if keep == nil || keep(&rec) {
			out = append(out, &rec)
		}
		return true
	})
	if err == nil {
		err = scanErr
	}
	if err != nil {
		return nil, storageErr("list snapshots", err)
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders records by creation time descending, breaking ties
// by id so the order is stable.
func SortNewestFirst(recs []*domain.SnapshotRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

// ============================================================================
// Pending operations
// ============================================================================

// GetPending returns the pending operation for key, or nil.
func (s *LocalStore) GetPending(ctx context.Context, key domain.ProjectKey) (*domain.PendingOperation, error) {
	var op domain.PendingOperation
	ok, err := s.getJSON(ctx, projectScopedKey(prefixPending, key), &op)
	if err != nil || !ok {
		return nil, err
	}
	return &op, nil
}

// PutPending stores op. An empty operation deletes the record instead.
func (s *LocalStore) PutPending(ctx context.Context, op *domain.PendingOperation) error {
	if op.Project.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("pending operation needs a project key")
	}
	if op.IsEmpty() {
		return s.DeletePending(ctx, op.Project)
	}
	op.UpdatedAt = s.now().UTC()
	return s.putJSON(ctx, projectScopedKey(prefixPending, op.Project), op)
}

// DeletePending removes the pending operation for key.
func (s *LocalStore) DeletePending(ctx context.Context, key domain.ProjectKey) error {
	if err := s.kv.Delete(ctx, projectScopedKey(prefixPending, key)); err != nil {
		return storageErr("delete pending", err)
	}
	return nil
}

// ListPending returns every pending operation, ordered by project key.
func (s *LocalStore) ListPending(ctx context.Context) ([]*domain.PendingOperation, error) {
	var out []*domain.PendingOperation
	err := s.scanJSON(ctx, prefixPending, func(raw []byte) error {
		var op domain.PendingOperation
		if err := json.Unmarshal(raw, &op); err != nil {
			return err
		}
		out = append(out, &op)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// Project cache and tombstones
// ============================================================================

// GetProject returns the cached project metadata, or nil.
func (s *LocalStore) GetProject(ctx context.Context, key domain.ProjectKey) (*domain.Project, error) {
	var p domain.Project
	ok, err := s.getJSON(ctx, projectScopedKey(prefixProjects, key), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// PutProject caches project metadata.
func (s *LocalStore) PutProject(ctx context.Context, p *domain.Project) error {
	return s.putJSON(ctx, projectScopedKey(prefixProjects, p.Key()), p)
}

// ListProjects returns every cached project, ordered by key.
func (s *LocalStore) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	var out []*domain.Project
	err := s.scanJSON(ctx, prefixProjects, func(raw []byte) error {
		var p domain.Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTombstone returns the local tombstone for key, or nil.
func (s *LocalStore) GetTombstone(ctx context.Context, key domain.ProjectKey) (*domain.Tombstone, error) {
	var t domain.Tombstone
	ok, err := s.getJSON(ctx, projectScopedKey(prefixTombstones, key), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// DeleteOptions controls DeleteProject.
type DeleteOptions struct {
	// SkipTombstone omits the local tombstone. Used when the deletion
	// originated remotely and the tombstone already exists there.
	SkipTombstone bool
}

// DeleteProject removes the cached project, its pending operation, and
// all of its snapshots in one transaction.
func (s *LocalStore) DeleteProject(ctx context.Context, key domain.ProjectKey, opts DeleteOptions) error {
	snapKeys, err := s.collectKeys(ctx, prefixSnapshots+domain.SnapshotIDPrefix(key, ""))
	if err != nil {
		return err
	}

	var tombstone []byte
	if !opts.SkipTombstone {
		tombstone, err = json.Marshal(domain.Tombstone{
			Username:  key.Username,
			Slug:      key.Slug,
			DeletedAt: s.now().UTC(),
		})
		if err != nil {
			return storageErr("encode tombstone", err)
		}
	}

	err = s.kv.Update(ctx, func(b Batch) error {
		for _, k := range snapKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		if err := b.Delete(projectScopedKey(prefixProjects, key)); err != nil {
			return err
		}
		if err := b.Delete(projectScopedKey(prefixPending, key)); err != nil {
			return err
		}
		if tombstone != nil {
			return b.Set(projectScopedKey(prefixTombstones, key), tombstone)
		}
		return nil
	})
	if err != nil {
		return storageErr("delete project", err)
	}
	return nil
}

// MigrateProject moves everything stored under from to to, used when a
// project is renamed. Snapshot ids are re-keyed; their content is copied
// unchanged.
func (s *LocalStore) MigrateProject(ctx context.Context, from, to domain.ProjectKey) error {
	if from == to {
		return nil
	}

	recs, err := s.ListProjectSnapshots(ctx, from)
	if err != nil {
		return err
	}
	project, err := s.GetProject(ctx, from)
	if err != nil {
		return err
	}
	pending, err := s.GetPending(ctx, from)
	if err != nil {
		return err
	}

	err = s.kv.Update(ctx, func(b Batch) error {
		for _, rec := range recs {
			oldID := rec.ID
			moved := *rec
			moved.Project = to
			moved.ID = domain.SnapshotIDPrefix(to, rec.DocumentID) + domain.ElementID(oldID)
			data, err := json.Marshal(&moved)
			if err != nil {
				return err
			}
			if err := b.Delete(snapshotKey(oldID)); err != nil {
				return err
			}
			if err := b.Set(snapshotKey(moved.ID), data); err != nil {
				return err
			}
		}

		if project != nil {
			project.Username, project.Slug = to.Username, to.Slug
			data, err := json.Marshal(project)
			if err != nil {
				return err
			}
			if err := b.Delete(projectScopedKey(prefixProjects, from)); err != nil {
				return err
			}
			if err := b.Set(projectScopedKey(prefixProjects, to), data); err != nil {
				return err
			}
		}

		if pending != nil {
			pending.Project = to
			if pending.PendingCreation != nil {
				pending.PendingCreation.Username = to.Username
				pending.PendingCreation.Slug = to.Slug
			}
			data, err := json.Marshal(pending)
			if err != nil {
				return err
			}
			if err := b.Delete(projectScopedKey(prefixPending, from)); err != nil {
				return err
			}
			if err := b.Set(projectScopedKey(prefixPending, to), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("migrate project", err)
	}
	return nil
}

// ElementType resolves an element's type from the cached project.
// Unknown projects or elements resolve to a prose item.
func (s *LocalStore) ElementType(ctx context.Context, project domain.ProjectKey, documentID string) (domain.ElementType, error) {
	el, err := s.element(ctx, project, documentID)
	if err != nil {
		return "", err
	}
	if el.Type == "" {
		return domain.ElementItem, nil
	}
	return el.Type, nil
}

// ElementName resolves an element's display name, falling back to its id.
func (s *LocalStore) ElementName(ctx context.Context, project domain.ProjectKey, documentID string) (string, error) {
	el, err := s.element(ctx, project, documentID)
	if err != nil {
		return "", err
	}
	if el.Name == "" {
		return domain.ElementID(documentID), nil
	}
	return el.Name, nil
}

func (s *LocalStore) element(ctx context.Context, project domain.ProjectKey, documentID string) (domain.Element, error) {
	p, err := s.GetProject(ctx, project)
	if err != nil || p == nil {
		return domain.Element{}, err
	}
	el, _ := p.Element(documentID)
	return el, nil
}

// Counts reports record totals for the metrics collector.
func (s *LocalStore) Counts(ctx context.Context) (metric.StoreCounts, error) {
	var c metric.StoreCounts
	err := s.kv.Scan(ctx, []byte(prefixSnapshots), func(_, value []byte) bool {
		c.Snapshots++
		var rec domain.SnapshotRecord
		if json.Unmarshal(value, &rec) == nil && !rec.IsSynced() {
			c.Unsynced++
		}
		return true
	})
	if err != nil {
		return c, storageErr("count snapshots", err)
	}
	err = s.kv.Scan(ctx, []byte(prefixPending), func(_, _ []byte) bool {
		c.Pending++
		return true
	})
	if err != nil {
		return c, storageErr("count pending", err)
	}
	return c, nil
}

// ============================================================================
// helpers
// ============================================================================

func (s *LocalStore) getJSON(ctx context.Context, key []byte, v any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get "+keySpace(key), err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, storageErr("decode "+keySpace(key), err)
	}
	return true, nil
}

func (s *LocalStore) putJSON(ctx context.Context, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return storageErr("encode "+keySpace(key), err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return storageErr("put "+keySpace(key), err)
	}
	return nil
}

func (s *LocalStore) scanJSON(ctx context.Context, prefix string, fn func(raw []byte) error) error {
	var fnErr error
	err := s.kv.Scan(ctx, []byte(prefix), func(_, value []byte) bool {
		fnErr = fn(value)
		return fnErr == nil
	})
	if err == nil {
		err = fnErr
	}
	if err != nil {
		return storageErr("list "+strings.TrimSuffix(prefix, "/"), err)
	}
	return nil
}

func (s *LocalStore) collectKeys(ctx context.Context, prefix string) ([][]byte, error) {
	var keys [][]byte
	err := s.kv.Scan(ctx, []byte(prefix), func(key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return nil, storageErr("scan keys", err)
	}
	return keys, nil
}

func keySpace(key []byte) string {
	space, _, _ := strings.Cut(string(key), "/")
	return space
}
