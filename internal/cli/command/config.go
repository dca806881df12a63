package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bobbyquantum/inkweld-sub009/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the merged configuration (secrets masked)",
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a configuration file",
				ArgsUsage: "[FILE]",
				Action:    configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg := GetConfig(c)
	if isTable(c) {
		return printResult(c, config.Settings(cfg))
	}
	return printResult(c, config.Sanitize(cfg))
}

func configValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = c.String("config")
	}
	if path == "" {
		return fmt.Errorf("configuration file path required")
	}
	if _, err := config.Load(path, nil); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "configuration is valid: %s\n", path)
	return nil
}
