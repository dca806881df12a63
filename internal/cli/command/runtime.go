package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bobbyquantum/inkweld-sub009/internal/config"
	"github.com/bobbyquantum/inkweld-sub009/internal/core/service"
	"github.com/bobbyquantum/inkweld-sub009/internal/infra/netstate"
	"github.com/bobbyquantum/inkweld-sub009/internal/remote"
	"github.com/bobbyquantum/inkweld-sub009/internal/storage"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
)

// Runtime holds the components of one command invocation.
type Runtime struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metric.Registry

	Engine *storage.BadgerEngine
	Store  *storage.LocalStore

	// Client is nil when no remote is configured.
	Client  *remote.Client
	Network *netstate.Monitor

	Active    *service.ActiveProject
	Snapshots *service.SnapshotService
	Scheduler *service.AutoSnapshotScheduler
	Sync      *service.SyncCoordinator
}

// openRuntime builds a Runtime from the configuration loaded for c.
func openRuntime(c *cli.Context) (*Runtime, error) {
	cfg := GetConfig(c)
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: statusWriter(c),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewRuntime(cfg, log)
}

// NewRuntime opens the local store and wires the services on top of it.
func NewRuntime(cfg *config.Config, log logger.Logger) (*Runtime, error) {
	log = logger.Or(log)
	metrics := metric.NewRegistry()

	kvCfg := storage.DefaultKVConfig(cfg.Storage.DataDir)
	kvCfg.InMemory = cfg.Storage.InMemory
	kvCfg.Badger.SyncWrites = cfg.Storage.SyncWrites
	if cfg.Storage.GCInterval != "" {
		kvCfg.Badger.GCInterval = cfg.Storage.GCInterval
	}
	if !kvCfg.InMemory {
		if err := os.MkdirAll(kvCfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	engine, err := storage.NewBadgerEngine(kvCfg, logger.Slog(log.With("component", "badger")))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	store := storage.NewLocalStore(engine)

	rt := &Runtime{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics,
		Engine:  engine,
		Store:   store,
		Active:  service.NewActiveProject(),
	}

	var (
		prober    netstate.Prober
		snapshots service.SnapshotGateway
		projects  service.ProjectGateway
	)
	if cfg.Remote.BaseURL != "" {
		rt.Client = remote.NewClient(remote.Config{
			BaseURL:   cfg.Remote.BaseURL,
			Token:     cfg.Remote.Token,
			Timeout:   cfg.Remote.Timeout,
			RateLimit: cfg.Remote.RateLimit,
			Burst:     cfg.Remote.Burst,
		})
		prober = rt.Client
		snapshots = remote.NewSnapshotClient(rt.Client)
		projects = remote.NewProjectClient(rt.Client)
	}
	rt.Network = netstate.NewMonitor(prober, netstate.Config{
		ProbePath: cfg.Sync.ProbePath,
		Interval:  cfg.Sync.ProbeInterval,
	}, log)

	rt.Snapshots = service.NewSnapshotService(service.SnapshotServiceConfig{
		Store:    store,
		Remote:   snapshots,
		Elements: store,
		Network:  rt.Network,
		Active:   rt.Active,
		Metrics:  metrics,
		Logger:   log,
	})
	rt.Scheduler = service.NewAutoSnapshotScheduler(rt.Snapshots, store, service.AutoSnapshotConfig{
		Throttle:  cfg.Snapshot.Throttle,
		Retention: cfg.Snapshot.Retention,
		Enabled:   cfg.Snapshot.AutoEnabled,
	}, metrics, log)
	rt.Sync = service.NewSyncCoordinator(store, projects, rt.Network, rt.Snapshots, metrics, log)

	return rt, nil
}

// Connect probes the remote once so "if online" checks see the real
// state. It is a no-op without a remote.
func (r *Runtime) Connect(ctx context.Context) bool {
	if r.Client == nil {
		return false
	}
	online := r.Network.Check(ctx)
	if !online {
		r.Logger.Warn("remote unreachable, working offline", "remote", r.Client.BaseURL())
	}
	return online
}

// Close waits for background work and closes the store.
func (r *Runtime) Close() error {
	r.Scheduler.Wait()
	return r.Store.Close()
}
