package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bobbyquantum/inkweld-sub009/internal/cli/output"
	"github.com/bobbyquantum/inkweld-sub009/internal/config"
	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/core/service"
	"github.com/bobbyquantum/inkweld-sub009/internal/infra/confloader"
	"github.com/bobbyquantum/inkweld-sub009/internal/infra/shutdown"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

// PendingCommand returns the pending subcommand group.
func PendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "Inspect operations waiting for the remote",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List pending project creations and metadata edits",
				Action: pendingList,
			},
		},
	}
}

// SyncCommand returns the sync subcommand group.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push pending work to the remote",
		Subcommands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run one sync pass",
				Flags:  []cli.Flag{projectFlag},
				Action: syncRun,
			},
			{
				Name:   "watch",
				Usage:  "Sync on reconnect and every poll interval until interrupted",
				Flags:  []cli.Flag{projectFlag},
				Action: syncWatch,
			},
		},
	}
}

// pendingRow is the table view of a pending operation.
type pendingRow struct {
	Project   string    `json:"project"`
	Creation  bool      `json:"creation"`
	Metadata  bool      `json:"metadata"`
	Title     string    `json:"title"`
	LastError string    `json:"last_error"`
	UpdatedAt time.Time `json:"updated_at"`
}

func pendingRows(ops []*domain.PendingOperation) []pendingRow {
	rows := make([]pendingRow, 0, len(ops))
	for _, op := range ops {
		row := pendingRow{
			Project:   op.Project.String(),
			Creation:  op.PendingCreation != nil,
			Metadata:  op.PendingMetadata != nil && !op.PendingMetadata.IsEmpty(),
			LastError: op.LastError,
			UpdatedAt: op.UpdatedAt,
		}
		if op.PendingCreation != nil {
			row.Title = op.PendingCreation.Title
		}
		if op.PendingMetadata != nil && op.PendingMetadata.Title != nil {
			row.Title = *op.PendingMetadata.Title
		}
		rows = append(rows, row)
	}
	return rows
}

func pendingList(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ops, err := rt.Store.ListPending(c.Context)
	if err != nil {
		return err
	}
	if isTable(c) {
		return printResult(c, pendingRows(ops))
	}
	return printResult(c, ops)
}

// setOptionalProject activates --project when given.
func setOptionalProject(c *cli.Context, rt *Runtime) error {
	if c.String("project") == "" {
		return nil
	}
	project, err := requireProject(c)
	if err != nil {
		return err
	}
	rt.Active.Set(project)
	return nil
}

func syncRun(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := setOptionalProject(c, rt); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	spinner := output.NewSpinner(statusWriter(c), "syncing")
	if isTable(c) {
		spinner.Start()
	}
	defer spinner.Stop()

	if !rt.Connect(ctx) {
		spinner.Fail("remote unavailable")
		return printResult(c, &service.SyncReport{})
	}

	report := rt.Sync.RunOnce(ctx)
	switch {
	case report.OK():
		spinner.Success(fmt.Sprintf("%d created, %d updated", report.Created, report.Updated))
	case !report.Ran:
		spinner.Fail("pass skipped")
	default:
		spinner.Fail(fmt.Sprintf("%d failed", report.Failed))
	}
	return printResult(c, report)
}

func syncWatch(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	if err := setOptionalProject(c, rt); err != nil {
		rt.Close()
		return err
	}

	cfg := rt.Config
	log := rt.Logger.With("command", "sync watch")
	handler := shutdown.NewHandler(shutdownTimeout, log)

	handler.OnShutdown("store", func(context.Context) error {
		return rt.Close()
	})

	ctx, cancel := context.WithCancel(c.Context)
	triggers := rt.Network.Subscribe()
	rt.Connect(ctx)

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		rt.Network.Run(ctx)
	}()
	go func() {
		defer loops.Done()
		rt.Sync.Run(ctx, triggers, cfg.Sync.PollInterval)
	}()
	handler.OnShutdown("sync loops", func(context.Context) error {
		cancel()
		loops.Wait()
		return nil
	})

	if path := c.String("config"); path != "" {
		watcher, err := watchConfig(path, ParseGlobalFlags(c).overrides(), rt, log)
		if err != nil {
			log.Warn("config hot reload disabled", "path", path, "error", err)
		} else {
			handler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, rt, log)
		handler.OnShutdown("metrics server", srv.Shutdown)
	}

	log.Info("sync watch started",
		"remote", cfg.Remote.BaseURL,
		"poll_interval", cfg.Sync.PollInterval,
		"metrics", cfg.Metrics.Addr,
	)
	return handler.Wait(c.Context)
}

// watchConfig reloads path on change and applies the hot-reloadable
// settings: log level and the automatic snapshot switch.
func watchConfig(path string, overrides map[string]any, rt *Runtime, log logger.Logger, opts ...confloader.WatcherOption) (*config.Reloader, error) {
	opts = append([]confloader.WatcherOption{confloader.WithWatcherLogger(logger.Slog(log))}, opts...)
	r, err := config.NewReloader(path, overrides, rt.Config, opts...)
	if err != nil {
		return nil, err
	}
	r.OnReload(func(next *config.Config) {
		applyReload(next, rt, log)
	})
	r.OnError(func(err error) {
		log.Warn("config reload failed", "path", path, "error", err)
	})
	r.Start()
	return r, nil
}

func applyReload(next *config.Config, rt *Runtime, log logger.Logger) {
	logger.SetLevel(next.Log.Level)
	rt.Scheduler.SetEnabled(next.Snapshot.AutoEnabled)
	log.Info("config reloaded",
		"log_level", next.Log.Level,
		"auto_snapshots", next.Snapshot.AutoEnabled,
	)
}

// metricsHandler registers the badger gauges and store totals with the
// runtime registry and returns the /metrics mux.
func metricsHandler(rt *Runtime) http.Handler {
	rt.Engine.RegisterMetrics(rt.Metrics.Registerer())
	rt.Metrics.Registerer().MustRegister(metric.NewCollector(rt.Store))

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Metrics.Handler())
	return mux
}

// serveMetrics exposes the runtime metrics on addr.
func serveMetrics(addr string, rt *Runtime, log logger.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}
