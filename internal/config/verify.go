package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyRemote(&cfg.Remote); err != nil {
		return err
	}
	if err := verifySnapshot(&cfg.Snapshot); err != nil {
		return err
	}
	if err := verifySync(&cfg.Sync); err != nil {
		return err
	}
	if cfg.Archive.Endpoint != "" && cfg.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archive.endpoint is set")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if !cfg.InMemory && cfg.DataDir == "" {
		return errors.New("storage.data_dir is required unless storage.in_memory is set")
	}
	if cfg.GCInterval != "" {
		if _, err := time.ParseDuration(cfg.GCInterval); err != nil {
			return fmt.Errorf("storage.gc_interval: %w", err)
		}
	}
	return nil
}

func verifyRemote(cfg *RemoteSection) error {
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("remote.base_url %q is not an absolute URL", cfg.BaseURL)
		}
	}
	if cfg.RateLimit < 0 {
		return errors.New("remote.rate_limit must not be negative")
	}
	return nil
}

func verifySnapshot(cfg *SnapshotSection) error {
	if cfg.Throttle <= 0 {
		return errors.New("snapshot.throttle must be positive")
	}
	if cfg.Retention < 1 {
		return errors.New("snapshot.retention must be at least 1")
	}
	if cfg.ExportKeep < 1 {
		return errors.New("snapshot.export_keep must be at least 1")
	}
	return nil
}

func verifySync(cfg *SyncSection) error {
	if cfg.PollInterval < 0 || cfg.ProbeInterval < 0 {
		return errors.New("sync intervals must not be negative")
	}
	return nil
}
