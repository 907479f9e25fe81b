package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display statistics about accounts and uploaded settlement months.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.Client) error {
			users, err := db.CountUsers(ctx)
			if err != nil {
				return fmt.Errorf("failed to count users: %w", err)
			}
			rows, err := db.CountSettlements(ctx)
			if err != nil {
				return fmt.Errorf("failed to count settlements: %w", err)
			}
			months, err := db.ListSettlementMonths(ctx, "")
			if err != nil {
				return fmt.Errorf("failed to list settlement months: %w", err)
			}

			fmt.Println("Database Statistics:")
			fmt.Printf("Accounts: %s (approved %s, pending %s, admins %s)\n",
				humanize.Comma(users.Total), humanize.Comma(users.Approved),
				humanize.Comma(users.Pending), humanize.Comma(users.Admins))
			fmt.Printf("Settlement Rows: %s\n", humanize.Comma(rows))

			if len(months) > 0 {
				fmt.Println("\nSettlement Months:")
				for _, m := range months {
					fmt.Printf("  %s: %s rows, commission %s\n",
						m.Month, humanize.Comma(m.Rows), humanize.CommafWithDigits(m.CommissionAmount, 0))
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
