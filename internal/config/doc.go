// Package config defines the inkweld-sync configuration structure.
//
// Values come from Default, then the YAML file, then INKWELD_* environment
// variables (see confloader). Verify rejects settings the services cannot
// run with; Sanitize masks credentials for display and logging. Reloader
// re-reads the file on change so live settings (auto-snapshot enablement,
// log level) can be reapplied without a restart.
package config
