package cmd

import (
	"context"
	"fmt"

	"github.com/jon4hz/csoportal/internal/account"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/spf13/cobra"
)

var createAdminCmdFlags struct {
	BusinessNumber string
	Password       string
	CompanyName    string
	Email          string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create or promote an admin account",
	Long:  `Create an approved admin account. An existing account with the same business number is promoted and gets the new password.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.Client) error {
			accounts := account.NewService(db, account.NewTokens(cfg.JWT), account.Options{PortalURL: cfg.ServerURL})
			user, created, err := accounts.EnsureAdmin(ctx,
				createAdminCmdFlags.BusinessNumber,
				createAdminCmdFlags.Password,
				createAdminCmdFlags.CompanyName,
				createAdminCmdFlags.Email,
			)
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}
			if created {
				fmt.Printf("Created admin %s (ID %d)\n", user.BusinessNumber, user.ID)
			} else {
				fmt.Printf("Promoted %s (ID %d) to admin\n", user.BusinessNumber, user.ID)
			}
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.BusinessNumber, "business-number", "", "Business number used to log in")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.Password, "password", "", "Password of the admin")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.CompanyName, "company", "", "Company name shown in the portal")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.Email, "email", "", "Email address of the admin")
	_ = createAdminCmd.MarkFlagRequired("business-number")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(createAdminCmd)
}
