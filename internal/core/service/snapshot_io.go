package service

import (
	"context"
	"io"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/serializer"
	"github.com/bobbyquantum/inkweld-sub009/internal/storage/bundle"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
)

// ExportResult describes a written bundle.
type ExportResult struct {
	Count    int    `json:"count"`
	Checksum string `json:"checksum"`
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// localRecords returns the active project's local records, restricted to
// documentID when it is non-empty.
func (s *SnapshotService) localRecords(ctx context.Context, documentID string) (domain.ProjectKey, []*domain.SnapshotRecord, error) {
	project, err := s.active.Require()
	if err != nil {
		return domain.ProjectKey{}, nil, err
	}
	var recs []*domain.SnapshotRecord
	if documentID != "" {
		recs, err = s.store.ListDocumentSnapshots(ctx, project, domain.ElementID(documentID))
	} else {
		recs, err = s.store.ListProjectSnapshots(ctx, project)
	}
	return project, recs, err
}

// ExportSnapshots writes the active project's local snapshots as a bundle
// onto w. When documentID is set only that document's snapshots are
// written.
func (s *SnapshotService) ExportSnapshots(ctx context.Context, w io.Writer, documentID string) (*ExportResult, error) {
	project, recs, err := s.localRecords(ctx, documentID)
	if err != nil {
		return nil, err
	}
	meta := bundle.Meta{
		Project:    project,
		DocumentID: domain.ElementID(documentID),
		CreatedAt:  s.now(),
	}
	sum, err := bundle.Write(w, meta, recs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("snapshots exported", "project", project.String(), "count", len(recs))
	return &ExportResult{Count: len(recs), Checksum: sum}, nil
}

// ExportToArchive writes a new bundle into a and applies the archive's
// retention.
func (s *SnapshotService) ExportToArchive(ctx context.Context, a *bundle.Archive, documentID string) (*bundle.Info, error) {
	project, recs, err := s.localRecords(ctx, documentID)
	if err != nil {
		return nil, err
	}
	info, err := a.Create(bundle.Meta{Project: project, DocumentID: domain.ElementID(documentID)}, recs)
	if err != nil {
		return nil, err
	}
	if removed, err := a.Prune(); err != nil {
		s.logger.Warn("bundle retention failed", "dir", a.Dir(), "error", err)
	} else if removed > 0 {
		s.logger.Debug("old bundles removed", "dir", a.Dir(), "removed", removed)
	}
	s.logger.Info("snapshot bundle written",
		"project", project.String(),
		"bundle", info.ID,
		"count", info.RecordCount,
	)
	return info, nil
}

// ImportSnapshots reads a bundle from r and stores its records as new
// unsynced snapshots of the active project. A record is skipped when the
// same document already has a local snapshot with identical content and
// creation time, or when its tree content does not parse.
func (s *SnapshotService) ImportSnapshots(ctx context.Context, r io.Reader) (*ImportResult, error) {
	project, err := s.active.Require()
	if err != nil {
		return nil, err
	}
	b, err := bundle.Read(r)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("read bundle").WithCause(err)
	}

	existing := make(map[string][]*domain.SnapshotRecord)
	result := &ImportResult{}
	for _, in := range b.Records {
		elementID := domain.ElementID(in.DocumentID)
		have, ok := existing[elementID]
		if !ok {
			have, err = s.store.ListDocumentSnapshots(ctx, project, elementID)
			if err != nil {
				return result, err
			}
			existing[elementID] = have
		}
		if containsSnapshot(have, in) {
			result.Skipped++
			continue
		}
		if in.Content != "" {
			if err := serializer.Validate(in.Content); err != nil {
				s.logger.Warn("skipping malformed snapshot",
					"document_id", in.DocumentID,
					"name", in.Name,
					"error", err,
				)
				result.Skipped++
				continue
			}
		}

		rec := &domain.SnapshotRecord{
			Project:     project,
			DocumentID:  elementID,
			Name:        in.Name,
			Description: in.Description,
			Content:     in.Content,
			MapData:     in.MapData,
			WordCount:   in.WordCount,
			CreatedAt:   in.CreatedAt,
			SyncState:   domain.SyncStateUnsynced,
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		rec.ID, err = domain.NewSnapshotID(project, elementID, rec.CreatedAt)
		if err != nil {
			return result, err
		}
		if err := s.store.PutSnapshot(ctx, rec); err != nil {
			return result, err
		}
		existing[elementID] = append(have, rec)
		s.metrics.SnapshotsCreated.WithLabelValues(metric.KindImport).Inc()
		result.Imported++
	}

	s.logger.Info("snapshots imported",
		"project", project.String(),
		"source", b.Meta.Project.String(),
		"imported", result.Imported,
		"skipped", result.Skipped,
	)
	return result, nil
}

func containsSnapshot(recs []*domain.SnapshotRecord, rec *domain.SnapshotRecord) bool {
	for _, r := range recs {
		if r.SameContent(rec) && r.CreatedAt.Equal(rec.CreatedAt) {
			return true
		}
	}
	return false
}
