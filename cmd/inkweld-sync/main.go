// Package main provides the entry point for inkweld-sync.
package main

import (
	"os"

	"github.com/bobbyquantum/inkweld-sub009/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
