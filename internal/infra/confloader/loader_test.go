package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Storage struct {
		DataDir  string `koanf:"data_dir"`
		InMemory bool   `koanf:"in_memory"`
	} `koanf:"storage"`
	Snapshot struct {
		AutoEnabled bool          `koanf:"auto_enabled"`
		Throttle    time.Duration `koanf:"throttle"`
		Retention   int           `koanf:"retention"`
	} `koanf:"snapshot"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/var/lib/inkweld"
snapshot:
  auto_enabled: true
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if dir := l.GetString("storage.data_dir"); dir != "/var/lib/inkweld" {
		t.Errorf("storage.data_dir = %q", dir)
	}
	if !l.GetBool("snapshot.auto_enabled") {
		t.Error("snapshot.auto_enabled should be true")
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	if err := NewLoader().LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	if err := NewLoader().LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"INKWELD_STORAGE_DATA_DIR", "storage.data_dir"},
		{"INKWELD_SNAPSHOT_AUTO_ENABLED", "snapshot.auto_enabled"},
		{"INKWELD_REMOTE_TOKEN", "remote.token"},
		{"INKWELD_DEBUG", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvKey("INKWELD_", tt.name); got != tt.want {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("INKWELD_STORAGE_DATA_DIR", "/tmp/inkweld")
	t.Setenv("INKWELD_SNAPSHOT_RETENTION", "3")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if dir := l.GetString("storage.data_dir"); dir != "/tmp/inkweld" {
		t.Errorf("storage.data_dir = %q", dir)
	}
	if n := l.GetInt("snapshot.retention"); n != 3 {
		t.Errorf("snapshot.retention = %d", n)
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_REMOTE_TIMEOUT", "9s")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if v := l.GetString("remote.timeout"); v != "9s" {
		t.Errorf("remote.timeout = %q, want %q", v, "9s")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"storage.data_dir": "/from/flag",
		"debug":            true,
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if dir := l.GetString("storage.data_dir"); dir != "/from/flag" {
		t.Errorf("storage.data_dir = %q", dir)
	}
	if !l.GetBool("debug") {
		t.Error("debug should be true")
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Storage.DataDir != "/from/flag" {
		t.Errorf("DataDir = %q, dotted key should unmarshal into section", cfg.Storage.DataDir)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/from/file"
snapshot:
  throttle: "10m"
`)
	t.Setenv("INKWELD_STORAGE_DATA_DIR", "/from/env")

	l := NewLoader(WithConfigFile(path))

	var cfg testConfig
	cfg.Snapshot.Retention = 10
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, want %q (env should override file)", cfg.Storage.DataDir, "/from/env")
	}
	if cfg.Snapshot.Throttle != 10*time.Minute {
		t.Errorf("Throttle = %v, want 10m", cfg.Snapshot.Throttle)
	}
	if cfg.Snapshot.Retention != 10 {
		t.Errorf("Retention = %d, preset default should survive", cfg.Snapshot.Retention)
	}
}

func TestLoader_IsLoaded(t *testing.T) {
	l := NewLoader()

	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_AllAndKeys(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{
		"log.level":  "debug",
		"log.format": "text",
	})

	if all := l.All(); len(all) < 2 {
		t.Errorf("All() returned %d keys, want at least 2", len(all))
	}
	if keys := l.Keys(); len(keys) < 2 {
		t.Errorf("Keys() returned %d keys, want at least 2", len(keys))
	}
}
