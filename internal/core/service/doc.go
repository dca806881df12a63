// Package service provides the snapshot and sync services of inkweld.
//
// SnapshotService creates, lists, restores and deletes snapshots. Local
// persistence always comes first; the remote mirror is best-effort and its
// failures are logged, never returned, on read paths.
//
// AutoSnapshotScheduler turns an edit-event stream into throttled
// automatic snapshots and prunes old ones.
//
// SyncCoordinator pushes pending project creations and metadata edits to
// the remote authority, honouring remote deletion tombstones. At most one
// pass runs at a time.
//
// Collaborators (store, gateways, document provider, connectivity) are
// interfaces declared here and injected through constructors.
package service
