package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Verifies(t *testing.T) {
	cfg := Default()
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify(Default()) = %v", err)
	}
	if cfg.Snapshot.Throttle != 5*time.Minute || cfg.Snapshot.Retention != 10 {
		t.Errorf("snapshot defaults = %+v", cfg.Snapshot)
	}
	if !cfg.Snapshot.AutoEnabled {
		t.Error("auto snapshots should default on")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no data dir", func(c *Config) { c.Storage.DataDir = "" }, "storage.data_dir"},
		{"in memory without dir", func(c *Config) { c.Storage.DataDir = ""; c.Storage.InMemory = true }, ""},
		{"bad gc interval", func(c *Config) { c.Storage.GCInterval = "soon" }, "storage.gc_interval"},
		{"relative base url", func(c *Config) { c.Remote.BaseURL = "inkweld" }, "remote.base_url"},
		{"absolute base url", func(c *Config) { c.Remote.BaseURL = "https://inkweld.example.com" }, ""},
		{"negative rate", func(c *Config) { c.Remote.RateLimit = -1 }, "remote.rate_limit"},
		{"zero throttle", func(c *Config) { c.Snapshot.Throttle = 0 }, "snapshot.throttle"},
		{"zero retention", func(c *Config) { c.Snapshot.Retention = 0 }, "snapshot.retention"},
		{"zero export keep", func(c *Config) { c.Snapshot.ExportKeep = 0 }, "snapshot.export_keep"},
		{"negative poll", func(c *Config) { c.Sync.PollInterval = -time.Second }, "sync intervals"},
		{"archive without bucket", func(c *Config) { c.Archive.Endpoint = "localhost:9000" }, "archive.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Verify() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Remote.Token = "iwk_supersecret"
	cfg.Archive.SecretKey = "abc"

	s := Sanitize(cfg)
	if s.Remote.Token != "iw***********et" {
		t.Errorf("Token = %q", s.Remote.Token)
	}
	if s.Archive.SecretKey != "****" {
		t.Errorf("SecretKey = %q", s.Archive.SecretKey)
	}
	if cfg.Remote.Token != "iwk_supersecret" {
		t.Error("Sanitize modified the original")
	}
}

func TestSettings(t *testing.T) {
	cfg := Default()
	cfg.Remote.Token = "iwk_supersecret"

	found := map[string]string{}
	for _, s := range Settings(cfg) {
		found[s.Key] = s.Value
	}
	if found["snapshot.throttle"] != "5m0s" {
		t.Errorf("snapshot.throttle = %q", found["snapshot.throttle"])
	}
	if strings.Contains(found["remote.token"], "supersecret") {
		t.Errorf("remote.token not masked: %q", found["remote.token"])
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkweld.yaml")
	content := `
storage:
  in_memory: true
snapshot:
  throttle: "1m"
  auto_enabled: false
remote:
  base_url: "https://inkweld.example.com"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INKWELD_SNAPSHOT_RETENTION", "4")

	cfg, err := Load(path, map[string]any{"log.level": "debug"})
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if !cfg.Storage.InMemory || cfg.Snapshot.AutoEnabled {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Snapshot.Throttle != time.Minute {
		t.Errorf("Throttle = %v", cfg.Snapshot.Throttle)
	}
	if cfg.Snapshot.Retention != 4 {
		t.Errorf("Retention = %d, want env value", cfg.Snapshot.Retention)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want override", cfg.Log.Level)
	}
	if cfg.Sync.ProbePath != DefaultProbePath {
		t.Errorf("ProbePath = %q, default should survive", cfg.Sync.ProbePath)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkweld.yaml")
	if err := os.WriteFile(path, []byte("snapshot:\n  retention: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Error("Load() should reject retention 0")
	}
}
