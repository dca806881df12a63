package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// AutoSnapshotPrefix marks automatically created snapshots. It is the only
// discriminator between automatic and manual snapshots and must stay stable
// so pruning keeps working on existing data.
const AutoSnapshotPrefix = "[Auto]"

// SyncState tracks whether a snapshot has reached the remote authority.
type SyncState string

const (
	SyncStateUnsynced SyncState = "unsynced"
	SyncStateSynced   SyncState = "synced"
)

// SnapshotRecord is a point-in-time capture of one document.
//
// Content and MapData are written once at creation; only SyncState and
// RemoteID change afterwards.
type SnapshotRecord struct {
	// ID is "username:slug:elementId:{ulid}" for local records, or the
	// remote id for records adapted from the remote gateway.
	ID string `json:"id"`

	// Project is the owning project.
	Project ProjectKey `json:"project"`

	// DocumentID is the element id (not the full composite key).
	DocumentID string `json:"document_id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Content is the serialized tree. Empty for map-only documents.
	Content string `json:"content"`

	// MapData is the auxiliary map as plain JSON, for structured documents.
	MapData json.RawMessage `json:"map_data,omitempty"`

	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`

	SyncState SyncState `json:"sync_state"`
	RemoteID  string    `json:"remote_id,omitempty"`
}

// IsSynced reports whether the record has a remote counterpart.
func (s *SnapshotRecord) IsSynced() bool {
	return s.SyncState == SyncStateSynced
}

// IsAuto reports whether the snapshot was created by the auto-snapshot scheduler.
func (s *SnapshotRecord) IsAuto() bool {
	return IsAutoSnapshotName(s.Name)
}

// HasContent reports whether the record carries tree content.
func (s *SnapshotRecord) HasContent() bool {
	return strings.TrimSpace(s.Content) != ""
}

// HasMapData reports whether the record carries map content.
func (s *SnapshotRecord) HasMapData() bool {
	trimmed := strings.TrimSpace(string(s.MapData))
	return trimmed != "" && trimmed != "null"
}

// SameContent reports whether two records capture identical state.
func (s *SnapshotRecord) SameContent(o *SnapshotRecord) bool {
	return s.DocumentID == o.DocumentID &&
		s.Content == o.Content &&
		string(s.MapData) == string(o.MapData)
}

// IsAutoSnapshotName reports whether name carries the automatic prefix.
func IsAutoSnapshotName(name string) bool {
	return strings.HasPrefix(name, AutoSnapshotPrefix)
}

// AutoSnapshotName builds "<prefix> <display name> — <human date/time>".
func AutoSnapshotName(displayName string, at time.Time) string {
	return AutoSnapshotPrefix + " " + displayName + " — " + HumanTimestamp(at)
}

// HumanTimestamp formats t for snapshot names.
func HumanTimestamp(t time.Time) string {
	return t.Format("Jan 2, 2006 3:04 PM")
}

// SnapshotEntry is a listing row: a record plus where it lives.
type SnapshotEntry struct {
	SnapshotRecord
	IsLocal  bool `json:"is_local"`
	IsRemote bool `json:"is_remote"`
}
