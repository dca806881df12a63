// Package buildinfo provides build information for inkweld-sync.
//
// This package exposes build-time information injected via ldflags:
//
//   - Version: Semantic version (e.g., "1.0.0")
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//
// Usage:
//
//	go build -ldflags "-X github.com/bobbyquantum/inkweld-sub009/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
