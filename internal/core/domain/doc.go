// Package domain defines the core domain models for the snapshot and sync layer.
//
// Domain models are plain value objects without IO dependencies.
// This package contains:
//
//   - SnapshotRecord: an immutable capture of a document's serialized state
//   - PendingOperation: a locally-originated project change awaiting the server
//   - Tombstone: a server-side deletion marker
//   - Project / Element: cached project metadata
//   - Keys: composite project, document and snapshot identifiers
//   - Errors: domain error taxonomy with stable codes
package domain
