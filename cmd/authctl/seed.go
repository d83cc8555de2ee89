package main

import (
	"errors"

	"github.com/geocoder89/recipehub/internal/app"
	"github.com/geocoder89/recipehub/internal/db"
	"github.com/geocoder89/recipehub/internal/security"
	"github.com/spf13/cobra"
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the admin user from ADMIN_EMAIL and ADMIN_PASSWORD if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
			return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}

		stores, err := app.OpenStores(cmd.Context(), cfg, nil, log)
		if err != nil {
			return err
		}
		defer stores.Close()

		created, err := db.EnsureAdminUser(cmd.Context(), stores.Users, security.NewHasher(0), db.AdminSeed{
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
			Name:     cfg.AdminName,
		})
		if err != nil {
			return err
		}

		if created {
			log.Info("admin user created", "email", cfg.AdminEmail, "store", cfg.Store)
		} else {
			log.Info("admin user already exists", "email", cfg.AdminEmail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
}
