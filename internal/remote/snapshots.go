package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

const snapshotsPrefix = "/api/v1/snapshots"

// SnapshotClient is the remote snapshot gateway.
type SnapshotClient struct {
	c *Client
}

// NewSnapshotClient creates a snapshot gateway on c.
func NewSnapshotClient(c *Client) *SnapshotClient {
	return &SnapshotClient{c: c}
}

// createSnapshotRequest is the body of POST /api/v1/snapshots/{user}/{slug}.
type createSnapshotRequest struct {
	DocumentID  string            `json:"documentId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Content     string            `json:"content"`
	MapData     json.RawMessage   `json:"mapData,omitempty"`
	WordCount   int               `json:"wordCount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// snapshotDTO is a snapshot as the remote returns it.
type snapshotDTO struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content,omitempty"`
	MapData     json.RawMessage `json:"mapData,omitempty"`
	WordCount   int             `json:"wordCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// record adapts a remote snapshot into the local record shape. The remote
// id doubles as the record id for remote-only entries.
func (d *snapshotDTO) record(project domain.ProjectKey) *domain.SnapshotRecord {
	return &domain.SnapshotRecord{
		ID:          d.ID,
		Project:     project,
		DocumentID:  domain.ElementID(d.DocumentID),
		Name:        d.Name,
		Description: d.Description,
		Content:     d.Content,
		MapData:     d.MapData,
		WordCount:   d.WordCount,
		CreatedAt:   d.CreatedAt,
		SyncState:   domain.SyncStateSynced,
		RemoteID:    d.ID,
	}
}

// Create uploads rec and returns the remote's copy.
func (s *SnapshotClient) Create(ctx context.Context, project domain.ProjectKey, rec *domain.SnapshotRecord) (*domain.SnapshotRecord, error) {
	body := createSnapshotRequest{
		DocumentID:  rec.DocumentID,
		Name:        rec.Name,
		Description: rec.Description,
		Content:     rec.Content,
		WordCount:   rec.WordCount,
		Metadata: map[string]string{
			"localId":   rec.ID,
			"createdAt": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if rec.HasMapData() {
		body.MapData = rec.MapData
	}

	var out snapshotDTO
	if err := s.c.do(ctx, http.MethodPost, projectPath(snapshotsPrefix, project), body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, domain.ErrRemote.WithDetails("create snapshot: response has no id")
	}
	return out.record(project), nil
}

// List returns the project's remote snapshots. Content may be omitted by
// the remote; use Preview to fetch it.
func (s *SnapshotClient) List(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error) {
	var out []snapshotDTO
	if err := s.c.do(ctx, http.MethodGet, projectPath(snapshotsPrefix, project), nil, &out); err != nil {
		return nil, err
	}
	recs := make([]*domain.SnapshotRecord, 0, len(out))
	for i := range out {
		recs = append(recs, out[i].record(project))
	}
	return recs, nil
}

// Preview fetches one snapshot with its content.
func (s *SnapshotClient) Preview(ctx context.Context, project domain.ProjectKey, id string) (*domain.SnapshotRecord, error) {
	var out snapshotDTO
	if err := s.c.do(ctx, http.MethodGet, projectPath(snapshotsPrefix, project, id, "preview"), nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out.record(project), nil
}

// Delete removes a remote snapshot.
func (s *SnapshotClient) Delete(ctx context.Context, project domain.ProjectKey, id string) error {
	return s.c.do(ctx, http.MethodDelete, projectPath(snapshotsPrefix, project, id), nil, nil)
}
