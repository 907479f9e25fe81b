package cmd

import (
	"context"
	"fmt"

	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run database migrations to set up or update the database schema and seed the default column settings.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithDB(cmd.Context(), func(_ context.Context, cfg *config.Config, _ *database.Client) error {
			fmt.Printf("Database migrations completed successfully (%s)\n", cfg.Database.Path)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
