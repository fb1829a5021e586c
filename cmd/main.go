/**
 * @description
 * Entry point for the teller service. Subcommands: serve, migrate and export.
 */

package main

import (
	"os"

	"github.com/bipinss1983/banksystem/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
