package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/recipehub/internal/sessionclient"
	"github.com/spf13/cobra"
)

var (
	whoamiURL      string
	whoamiEmail    string
	whoamiPassword string
)

// whoamiCmd logs in against a running API and prints the current user. It
// goes through the same refreshing client a browser session would.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Log in and print the authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if whoamiEmail == "" || whoamiPassword == "" {
			return errors.New("--email and --password are required")
		}

		client, err := sessionclient.New(whoamiURL, &http.Client{Timeout: 10 * time.Second},
			sessionclient.WithLogger(log))
		if err != nil {
			return err
		}

		if err := client.Login(cmd.Context(), whoamiEmail, whoamiPassword); err != nil {
			return err
		}

		u, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)

	whoamiCmd.Flags().StringVar(&whoamiURL, "url", "http://localhost:8080", "API base URL")
	whoamiCmd.Flags().StringVar(&whoamiEmail, "email", "", "account email")
	whoamiCmd.Flags().StringVar(&whoamiPassword, "password", "", "account password")
}
