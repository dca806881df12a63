package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/bobbyquantum/inkweld-sub009/internal/cli/output"
	"github.com/bobbyquantum/inkweld-sub009/internal/config"
	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/infra/buildinfo"
)

const configKey = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "inkweld-sync",
		Usage:   "Local-first snapshots and background sync for inkweld projects",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SnapshotCommand(),
			PendingCommand(),
			SyncCommand(),
			ConfigCommand(),
			StatusCommand(),
			VersionCommand(),
		},
		Before: loadConfig,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			EnvVars: []string{"INKWELD_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Local store directory (overrides storage.data_dir)",
		},
		&cli.StringFlag{
			Name:  "remote",
			Usage: "Remote base URL (overrides remote.base_url)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config  string
	DataDir string
	Remote  string

	Output  string // table, json, yaml
	Wide    bool
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:  c.String("config"),
		DataDir: c.String("data-dir"),
		Remote:  c.String("remote"),
		Output:  c.String("output"),
		Wide:    c.Bool("wide"),
		Verbose: c.Bool("verbose"),
	}
}

// overrides maps command-line flags onto configuration keys.
func (f *GlobalFlags) overrides() map[string]any {
	m := map[string]any{}
	if f.DataDir != "" {
		m["storage.data_dir"] = f.DataDir
	}
	if f.Remote != "" {
		m["remote.base_url"] = f.Remote
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	return m
}

// loadConfig runs before every command and stores the merged
// configuration in the app metadata.
func loadConfig(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	if _, err := output.ParseFormat(flags.Output); err != nil {
		return err
	}
	cfg, err := config.Load(flags.Config, flags.overrides())
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

// GetConfig returns the configuration loaded by the Before hook.
func GetConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// printResult writes data in the format selected by --output.
func printResult(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, data)
}

// isTable reports whether output goes to a terminal-style table.
func isTable(c *cli.Context) bool {
	format, _ := output.ParseFormat(c.String("output"))
	return format == output.FormatTable
}

// statusWriter is where progress and confirmations go. They never mix
// with structured output.
func statusWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// requireProject parses the --project flag.
func requireProject(c *cli.Context) (domain.ProjectKey, error) {
	raw := c.String("project")
	if raw == "" {
		return domain.ProjectKey{}, fmt.Errorf("--project is required (USERNAME/SLUG)")
	}
	return domain.ParseProjectKey(raw)
}

// projectFromSnapshotID returns the project embedded in a local snapshot
// id "username:slug:elementId:ulid".
func projectFromSnapshotID(id string) (domain.ProjectKey, bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" {
		return domain.ProjectKey{}, false
	}
	return domain.ProjectKey{Username: parts[0], Slug: parts[1]}, true
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
