package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bobbyquantum/inkweld-sub009/internal/infra/buildinfo"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show local store totals and remote reachability",
		Action: status,
	}
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show build information",
		Action: version,
	}
}

// statusInfo is the output of the status command.
type statusInfo struct {
	DataDir           string `json:"data_dir"`
	Remote            string `json:"remote"`
	Online            bool   `json:"online"`
	Snapshots         int    `json:"snapshots"`
	UnsyncedSnapshots int    `json:"unsynced_snapshots"`
	PendingOperations int    `json:"pending_operations"`
	AutoSnapshots     bool   `json:"auto_snapshots"`
	Version           string `json:"version"`
}

func status(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	counts, err := rt.Store.Counts(ctx)
	if err != nil {
		return err
	}

	info := statusInfo{
		DataDir:           rt.Config.Storage.DataDir,
		Online:            rt.Connect(ctx),
		Snapshots:         counts.Snapshots,
		UnsyncedSnapshots: counts.Unsynced,
		PendingOperations: counts.Pending,
		AutoSnapshots:     rt.Scheduler.Enabled(),
		Version:           buildinfo.Get().Version,
	}
	if rt.Client != nil {
		info.Remote = rt.Client.BaseURL()
	}
	if rt.Config.Storage.InMemory {
		info.DataDir = "(in memory)"
	}
	return printResult(c, info)
}

func version(c *cli.Context) error {
	return printResult(c, buildinfo.Get())
}
