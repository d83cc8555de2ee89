package main

import (
	"fmt"

	"github.com/geocoder89/recipehub/internal/db"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations to DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.MigrateUp(cfg.DBURL); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}

		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
}
