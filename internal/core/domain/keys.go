package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProjectKey identifies a project by owner and slug.
// String form: "username/slug".
type ProjectKey struct {
	Username string `json:"username"`
	Slug     string `json:"slug"`
}

// String returns the "username/slug" form used as a store key.
func (k ProjectKey) String() string {
	return k.Username + "/" + k.Slug
}

// IsZero reports whether the key is unset.
func (k ProjectKey) IsZero() bool {
	return k.Username == "" && k.Slug == ""
}

// ParseProjectKey parses "username/slug".
func ParseProjectKey(s string) (ProjectKey, error) {
	user, slug, ok := strings.Cut(s, "/")
	if !ok || user == "" || slug == "" || strings.Contains(slug, "/") {
		return ProjectKey{}, ErrInvalidArgument.WithDetails("project key must be username/slug: " + s)
	}
	return ProjectKey{Username: user, Slug: slug}, nil
}

// DocumentKey returns the composite document identifier
// "username:slug:elementId" used by the document provider.
func DocumentKey(project ProjectKey, elementID string) string {
	return project.Username + ":" + project.Slug + ":" + ElementID(elementID)
}

// ElementID strips any project-scoped prefix from a document identifier
// and returns the trailing element id segment.
func ElementID(id string) string {
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// ParseDocumentKey splits "username:slug:elementId".
func ParseDocumentKey(s string) (ProjectKey, string, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ProjectKey{}, "", ErrInvalidArgument.WithDetails("document key must be username:slug:elementId: " + s)
	}
	return ProjectKey{Username: parts[0], Slug: parts[1]}, parts[2], nil
}

// SnapshotIDPrefix returns the id prefix shared by all snapshots of a
// project, or of one document when elementID is non-empty.
func SnapshotIDPrefix(project ProjectKey, elementID string) string {
	prefix := project.Username + ":" + project.Slug + ":"
	if elementID != "" {
		prefix += ElementID(elementID) + ":"
	}
	return prefix
}

// NewSnapshotID generates "username:slug:elementId:{ulid_lowercase}".
// The ULID suffix keeps ids unique per creation and sortable by time.
func NewSnapshotID(project ProjectKey, elementID string, at time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return "", ErrInvalidArgument.WithCause(err)
	}
	return SnapshotIDPrefix(project, elementID) + strings.ToLower(id.String()), nil
}
