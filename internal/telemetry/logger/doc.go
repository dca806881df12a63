// Package logger provides structured logging for inkweld sync.
//
// The package wraps log/slog:
//
//   - logger.go: Logger interface, configuration and the process default
//   - context.go: context propagation of the logger and correlation fields
//   - redact.go: sensitive data redaction
//
// Components receive a Logger through their constructors; Or substitutes
// the default when none is given. Remote bearer tokens and archive
// credentials are redacted by every handler created through New.
package logger
