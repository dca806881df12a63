package domain

import "time"

// ProjectPayload is the body of a project creation.
type ProjectPayload struct {
	Username    string `json:"username"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ProjectPatch carries edited project fields. Nil fields are unchanged.
type ProjectPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Slug        *string `json:"slug,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *ProjectPatch) IsEmpty() bool {
	return p == nil || (p.Title == nil && p.Description == nil && p.Slug == nil)
}

// Apply merges the patch onto project.
func (p *ProjectPatch) Apply(project *Project) {
	if p == nil {
		return
	}
	if p.Title != nil {
		project.Title = *p.Title
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Slug != nil {
		project.Slug = *p.Slug
	}
}

// Merge folds a newer patch into p, newer fields winning.
func (p *ProjectPatch) Merge(newer *ProjectPatch) *ProjectPatch {
	out := &ProjectPatch{}
	if p != nil {
		*out = *p
	}
	if newer == nil {
		return out
	}
	if newer.Title != nil {
		out.Title = newer.Title
	}
	if newer.Description != nil {
		out.Description = newer.Description
	}
	if newer.Slug != nil {
		out.Slug = newer.Slug
	}
	return out
}

// PendingOperation is the per-project record of changes not yet
// acknowledged by the remote authority.
type PendingOperation struct {
	Project         ProjectKey      `json:"project"`
	PendingCreation *ProjectPayload `json:"pending_creation,omitempty"`
	PendingMetadata *ProjectPatch   `json:"pending_metadata,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsEmpty reports whether nothing remains to sync.
func (p *PendingOperation) IsEmpty() bool {
	return p.PendingCreation == nil && p.PendingMetadata.IsEmpty()
}

// Tombstone records a server-side project deletion.
type Tombstone struct {
	Username  string    `json:"username"`
	Slug      string    `json:"slug"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Key returns the deleted project's key.
func (t Tombstone) Key() ProjectKey {
	return ProjectKey{Username: t.Username, Slug: t.Slug}
}
