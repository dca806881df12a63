package config

import "time"

// Config is the root configuration for inkweld-sync.
type Config struct {
	Storage  StorageSection  `koanf:"storage"`
	Remote   RemoteSection   `koanf:"remote"`
	Snapshot SnapshotSection `koanf:"snapshot"`
	Sync     SyncSection     `koanf:"sync"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
	Archive  ArchiveSection  `koanf:"archive"`
}

// StorageSection configures the local store.
type StorageSection struct {
	DataDir    string `koanf:"data_dir"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`

	// GCInterval is the badger value-log GC period, e.g. "10m".
	GCInterval string `koanf:"gc_interval"`
}

// RemoteSection configures the remote authority.
type RemoteSection struct {
	// BaseURL is empty when working fully offline.
	BaseURL   string        `koanf:"base_url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
}

// SnapshotSection configures automatic snapshots and export bundles.
type SnapshotSection struct {
	AutoEnabled bool          `koanf:"auto_enabled"`
	Throttle    time.Duration `koanf:"throttle"`
	Retention   int           `koanf:"retention"`

	ExportDir  string `koanf:"export_dir"`
	ExportKeep int    `koanf:"export_keep"`
}

// SyncSection configures the background sync loop.
type SyncSection struct {
	PollInterval  time.Duration `koanf:"poll_interval"`
	ProbePath     string        `koanf:"probe_path"`
	ProbeInterval time.Duration `koanf:"probe_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `koanf:"addr"`
}

// ArchiveSection configures the optional S3-compatible bundle archive.
type ArchiveSection struct {
	Endpoint  string `koanf:"endpoint"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// Enabled reports whether an object archive is configured.
func (a ArchiveSection) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}
