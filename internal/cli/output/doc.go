// Package output renders command results for inkweld-sync.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned tables built from structs, slices and maps
//   - json.go: indented JSON
//   - yaml.go: YAML (gopkg.in/yaml.v3), keyed like the JSON form
//   - progress.go: byte progress for bundle uploads
//   - spinner.go: activity indicator for long-running passes
//
// Table output reads the `json` tag for column names and honours
// `table:"-"` (never shown) and `table:"wide"` (only with --wide).
// Embedded structs contribute their fields as if declared inline.
package output
