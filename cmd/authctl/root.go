package main

import (
	"log/slog"

	"github.com/geocoder89/recipehub/internal/config"
	"github.com/geocoder89/recipehub/internal/observability"
	"github.com/spf13/cobra"
)

var (
	cfg config.Config
	log *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Operational commands for the recipehub auth service",
	Long: `Operational commands for the recipehub auth service. Usage:

	authctl migrate up
	authctl seed-admin
	authctl whoami --email me@example.com --password ...
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		log = observability.NewLogger(cfg.Env)
	},
}
