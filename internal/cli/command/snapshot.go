package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bobbyquantum/inkweld-sub009/internal/cli/output"
	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/storage/bundle"
)

const commandTimeout = 2 * time.Minute

var projectFlag = &cli.StringFlag{
	Name:    "project",
	Aliases: []string{"p"},
	Usage:   "Project as USERNAME/SLUG",
}

var documentFlag = &cli.StringFlag{
	Name:    "document",
	Aliases: []string{"d"},
	Usage:   "Element id (or username:slug:elementId)",
}

// SnapshotCommand returns the snapshot subcommand group.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Aliases: []string{"snap"},
		Usage:   "Manage document snapshots",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List local and remote snapshots",
				Flags:  []cli.Flag{projectFlag, documentFlag},
				Action: snapshotList,
			},
			{
				Name:      "show",
				Usage:     "Show one snapshot",
				ArgsUsage: "SNAPSHOT_ID",
				Flags:     []cli.Flag{projectFlag},
				Action:    snapshotShow,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a snapshot locally and on the remote",
				ArgsUsage: "SNAPSHOT_ID",
				Flags:     []cli.Flag{projectFlag},
				Action:    snapshotDelete,
			},
			{
				Name:  "export",
				Usage: "Write local snapshots to a bundle file",
				Flags: []cli.Flag{
					projectFlag,
					documentFlag,
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Bundle file to write (- for stdout)",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Bundle archive directory (default: snapshot.export_dir)",
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Copy the new bundle to the configured object archive",
					},
				},
				Action: snapshotExport,
			},
			{
				Name:      "import",
				Usage:     "Import snapshots from a bundle",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					projectFlag,
					&cli.BoolFlag{
						Name:  "latest",
						Usage: "Import the newest valid bundle of the archive directory",
					},
					&cli.StringFlag{
						Name:  "object",
						Usage: "Download and import the named bundle from the object archive",
					},
				},
				Action: snapshotImport,
			},
			{
				Name:   "bundles",
				Usage:  "List exported bundles",
				Flags:  []cli.Flag{projectFlag, &cli.BoolFlag{Name: "object", Usage: "List the object archive"}},
				Action: snapshotBundles,
			},
			{
				Name:   "prune",
				Usage:  "Apply automatic snapshot retention",
				Flags:  []cli.Flag{projectFlag},
				Action: snapshotPrune,
			},
		},
	}
}

// snapshotRow is the table view of a snapshot entry.
type snapshotRow struct {
	ID        string           `json:"id"`
	Document  string           `json:"document_id"`
	Name      string           `json:"name"`
	Words     int              `json:"word_count"`
	CreatedAt time.Time        `json:"created_at"`
	Sync      domain.SyncState `json:"sync_state"`
	Local     bool             `json:"is_local"`
	Remote    bool             `json:"is_remote"`
	RemoteID  string           `json:"remote_id" table:"wide"`
}

func snapshotRows(entries []domain.SnapshotEntry) []snapshotRow {
	rows := make([]snapshotRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, snapshotRow{
			ID:        e.ID,
			Document:  e.DocumentID,
			Name:      e.Name,
			Words:     e.WordCount,
			CreatedAt: e.CreatedAt,
			Sync:      e.SyncState,
			Local:     e.IsLocal,
			Remote:    e.IsRemote,
			RemoteID:  e.RemoteID,
		})
	}
	return rows
}

// withProject opens a runtime with the --project flag (or the project
// embedded in fallbackID) active, probes the remote and runs fn.
func withProject(c *cli.Context, fallbackID string, fn func(ctx context.Context, rt *Runtime, project domain.ProjectKey) error) error {
	project, err := requireProject(c)
	if err != nil {
		p, ok := projectFromSnapshotID(fallbackID)
		if !ok {
			return err
		}
		project = p
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	rt.Connect(ctx)
	rt.Active.Set(project)
	return fn(ctx, rt, project)
}

func snapshotList(c *cli.Context) error {
	return withProject(c, "", func(ctx context.Context, rt *Runtime, _ domain.ProjectKey) error {
		var (
			entries []domain.SnapshotEntry
			err     error
		)
		if doc := c.String("document"); doc != "" {
			entries, err = rt.Snapshots.List(ctx, doc)
		} else {
			entries, err = rt.Snapshots.ListProject(ctx)
		}
		if err != nil {
			return err
		}
		if isTable(c) {
			return printResult(c, snapshotRows(entries))
		}
		return printResult(c, entries)
	})
}

func snapshotShow(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("snapshot ID is required")
	}
	return withProject(c, id, func(ctx context.Context, rt *Runtime, _ domain.ProjectKey) error {
		rec, err := rt.Snapshots.GetForRestore(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return domain.ErrSnapshotNotFound.WithDetails(id)
		}
		return printResult(c, rec)
	})
}

func snapshotDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("snapshot ID is required")
	}
	return withProject(c, id, func(ctx context.Context, rt *Runtime, _ domain.ProjectKey) error {
		if err := rt.Snapshots.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(statusWriter(c), "snapshot %s deleted\n", id)
		return nil
	})
}

func snapshotExport(c *cli.Context) error {
	file, dir := c.String("file"), c.String("dir")
	if file != "" && dir != "" {
		return fmt.Errorf("--file and --dir are mutually exclusive")
	}
	if file != "" && c.Bool("upload") {
		return fmt.Errorf("--upload requires an archive directory")
	}

	return withProject(c, "", func(ctx context.Context, rt *Runtime, project domain.ProjectKey) error {
		doc := c.String("document")
		if file != "" {
			return exportFile(ctx, c, rt, file, doc)
		}

		if dir == "" {
			dir = rt.Config.Snapshot.ExportDir
		}
		archive, err := bundle.NewArchive(bundle.Config{Dir: dir, RetentionCount: rt.Config.Snapshot.ExportKeep})
		if err != nil {
			return err
		}
		info, err := rt.Snapshots.ExportToArchive(ctx, archive, doc)
		if err != nil {
			return err
		}
		if c.Bool("upload") {
			if err := uploadBundle(ctx, c, rt, project, info); err != nil {
				return err
			}
		}
		return printResult(c, info)
	})
}

func exportFile(ctx context.Context, c *cli.Context, rt *Runtime, path, doc string) error {
	if path == "-" {
		_, err := rt.Snapshots.ExportSnapshots(ctx, c.App.Writer, doc)
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create bundle file: %w", err)
	}
	result, err := rt.Snapshots.ExportSnapshots(ctx, f, doc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return printResult(c, result)
}

// objectArchive opens the configured object archive scoped to project.
func objectArchive(rt *Runtime, project domain.ProjectKey) (*bundle.ObjectArchive, error) {
	a := rt.Config.Archive
	if !a.Enabled() {
		return nil, fmt.Errorf("no object archive configured (archive.endpoint, archive.bucket)")
	}
	return bundle.NewObjectArchive(bundle.ObjectConfig{
		Endpoint:  a.Endpoint,
		Bucket:    a.Bucket,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		UseSSL:    a.UseSSL,
		Prefix:    project.String() + "/",
	})
}

func uploadBundle(ctx context.Context, c *cli.Context, rt *Runtime, project domain.ProjectKey, info *bundle.Info) error {
	objects, err := objectArchive(rt, project)
	if err != nil {
		return err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return err
	}

	bar := output.NewProgressBar(statusWriter(c), "uploading "+info.ID)
	bar.SetTotal(info.Size)
	name, err := objects.Upload(ctx, info, bar)
	if err != nil {
		return err
	}
	bar.Finish()

	if removed, err := objects.Prune(ctx, rt.Config.Snapshot.ExportKeep); err != nil {
		rt.Logger.Warn("object archive retention failed", "error", err)
	} else if removed > 0 {
		rt.Logger.Debug("old bundle objects removed", "removed", removed)
	}
	rt.Logger.Info("bundle uploaded", "object", name, "size", info.Size)
	return nil
}

func snapshotImport(c *cli.Context) error {
	path := c.Args().First()
	sources := 0
	for _, set := range []bool{path != "", c.Bool("latest"), c.String("object") != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of FILE, --latest or --object is required")
	}

	return withProject(c, "", func(ctx context.Context, rt *Runtime, project domain.ProjectKey) error {
		switch {
		case c.Bool("latest"):
			archive, err := bundle.NewArchive(bundle.Config{Dir: rt.Config.Snapshot.ExportDir, RetentionCount: rt.Config.Snapshot.ExportKeep})
			if err != nil {
				return err
			}
			_, info, err := archive.Latest()
			if err != nil {
				return err
			}
			path = info.Path
		case c.String("object") != "":
			objects, err := objectArchive(rt, project)
			if err != nil {
				return err
			}
			tmp, err := os.MkdirTemp("", "inkweld-bundle-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)
			if path, err = objects.Download(ctx, c.String("object"), tmp); err != nil {
				return err
			}
		}

		var r io.Reader
		if path == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open bundle: %w", err)
			}
			defer f.Close()
			r = f
		}

		result, err := rt.Snapshots.ImportSnapshots(ctx, r)
		if err != nil {
			return err
		}
		return printResult(c, result)
	})
}

func snapshotBundles(c *cli.Context) error {
	if c.Bool("object") {
		return withProject(c, "", func(ctx context.Context, rt *Runtime, project domain.ProjectKey) error {
			objects, err := objectArchive(rt, project)
			if err != nil {
				return err
			}
			infos, err := objects.List(ctx)
			if err != nil {
				return err
			}
			return printResult(c, infos)
		})
	}

	cfg := GetConfig(c)
	archive, err := bundle.NewArchive(bundle.Config{Dir: cfg.Snapshot.ExportDir, RetentionCount: cfg.Snapshot.ExportKeep})
	if err != nil {
		return err
	}
	infos, err := archive.List()
	if err != nil {
		return err
	}
	return printResult(c, infos)
}

func snapshotPrune(c *cli.Context) error {
	return withProject(c, "", func(ctx context.Context, rt *Runtime, _ domain.ProjectKey) error {
		removed, err := rt.Scheduler.Prune(ctx)
		if err != nil {
			return err
		}
		return printResult(c, map[string]int{"removed": removed})
	})
}
