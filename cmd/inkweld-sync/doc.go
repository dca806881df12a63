// Package main provides the entry point for inkweld-sync.
//
// The tool works on the local snapshot store of an inkweld installation:
//
//   - Snapshot management (list, show, delete, export, import, prune)
//   - Pending project operations and background sync
//   - Configuration inspection and validation
//
// Usage:
//
//	inkweld-sync [global flags] command [flags] [args]
//	inkweld-sync -o json snapshot list --project alice/novel
//	inkweld-sync --config inkweld.yaml sync watch
package main
