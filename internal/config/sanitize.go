package config

import (
	"fmt"
	"strings"
)

// Sanitize returns a copy of the config with sensitive fields masked.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	if sanitized.Remote.Token != "" {
		sanitized.Remote.Token = maskSecret(sanitized.Remote.Token)
	}
	if sanitized.Archive.SecretKey != "" {
		sanitized.Archive.SecretKey = maskSecret(sanitized.Archive.SecretKey)
	}
	return &sanitized
}

// maskSecret masks a secret value for safe display.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// Setting is one flattened configuration entry.
type Setting struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Settings flattens cfg into display order. Secrets are masked.
func Settings(cfg *Config) []Setting {
	c := Sanitize(cfg)
	kv := func(k string, v any) Setting { return Setting{Key: k, Value: fmt.Sprint(v)} }
	return []Setting{
		kv("storage.data_dir", c.Storage.DataDir),
		kv("storage.in_memory", c.Storage.InMemory),
		kv("storage.sync_writes", c.Storage.SyncWrites),
		kv("storage.gc_interval", c.Storage.GCInterval),
		kv("remote.base_url", c.Remote.BaseURL),
		kv("remote.token", c.Remote.Token),
		kv("remote.timeout", c.Remote.Timeout),
		kv("remote.rate_limit", c.Remote.RateLimit),
		kv("remote.burst", c.Remote.Burst),
		kv("snapshot.auto_enabled", c.Snapshot.AutoEnabled),
		kv("snapshot.throttle", c.Snapshot.Throttle),
		kv("snapshot.retention", c.Snapshot.Retention),
		kv("snapshot.export_dir", c.Snapshot.ExportDir),
		kv("snapshot.export_keep", c.Snapshot.ExportKeep),
		kv("sync.poll_interval", c.Sync.PollInterval),
		kv("sync.probe_path", c.Sync.ProbePath),
		kv("sync.probe_interval", c.Sync.ProbeInterval),
		kv("log.level", c.Log.Level),
		kv("log.format", c.Log.Format),
		kv("metrics.addr", c.Metrics.Addr),
		kv("archive.endpoint", c.Archive.Endpoint),
		kv("archive.bucket", c.Archive.Bucket),
		kv("archive.access_key", c.Archive.AccessKey),
		kv("archive.secret_key", c.Archive.SecretKey),
		kv("archive.use_ssl", c.Archive.UseSSL),
	}
}
