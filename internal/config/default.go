package config

import "time"

// Default configuration values.
const (
	DefaultDataDir    = "./data"
	DefaultGCInterval = "10m"

	DefaultRemoteTimeout = 30 * time.Second
	DefaultRateLimit     = 10.0
	DefaultBurst         = 5

	DefaultThrottle   = 5 * time.Minute
	DefaultRetention  = 10
	DefaultExportDir  = "./exports"
	DefaultExportKeep = 5

	DefaultPollInterval  = 2 * time.Minute
	DefaultProbePath     = "/api/v1/health"
	DefaultProbeInterval = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			DataDir:    DefaultDataDir,
			SyncWrites: true,
			GCInterval: DefaultGCInterval,
		},
		Remote: RemoteSection{
			Timeout:   DefaultRemoteTimeout,
			RateLimit: DefaultRateLimit,
			Burst:     DefaultBurst,
		},
		Snapshot: SnapshotSection{
			AutoEnabled: true,
			Throttle:    DefaultThrottle,
			Retention:   DefaultRetention,
			ExportDir:   DefaultExportDir,
			ExportKeep:  DefaultExportKeep,
		},
		Sync: SyncSection{
			PollInterval:  DefaultPollInterval,
			ProbePath:     DefaultProbePath,
			ProbeInterval: DefaultProbeInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
