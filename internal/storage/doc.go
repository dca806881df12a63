// Package storage provides the local persistent store for inkweld sync.
//
// Architecture:
//
//   - KVEngine: embedded key-value engine (Badger v3, on disk or in memory)
//   - LocalStore: snapshot records, pending project operations, the project
//     cache, and local tombstones, stored as JSON under separate key spaces
//
// Key spaces:
//
//	snapshots/<username>:<slug>:<elementId>:<ulid>
//	pending/<username>/<slug>
//	projects/<username>/<slug>
//	tombstones/<username>/<slug>
//
// Snapshot ids embed the project and element so per-project and
// per-document listing is a prefix scan.
package storage
