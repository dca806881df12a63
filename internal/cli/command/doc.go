// Package command provides the inkweld-sync command definitions.
//
// Commands are built on urfave/cli/v2:
//
//   - root.go: App, global flags, output helpers
//   - runtime.go: wiring of store, remote gateways and services per run
//   - snapshot.go: snapshot list/show/delete/export/import/prune
//   - sync.go: pending list, sync run, sync watch
//   - config.go: config show/validate
//   - system.go: status, version
//
// Each action loads the configuration, opens a Runtime, calls the service
// layer and writes the result through the selected output formatter.
package command
