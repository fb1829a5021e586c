package commands

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bipinss1983/banksystem/internal/config"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "banksystem",
		Short:   "Bank teller service: deposits, withdrawals, statements",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing the .env file")

	load := func() (config.Config, error) {
		// Load .env file for local development.
		if err := godotenv.Load(); err != nil {
			log.Println("level=info component=bootstrap msg=\"no .env file found, using environment variables\"")
		}
		return config.LoadConfig(configPath)
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newMigrateCommand(load))
	rootCmd.AddCommand(newExportCommand(load))

	return rootCmd
}

type configLoader func() (config.Config, error)
