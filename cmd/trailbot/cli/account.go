package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RegisterAccountCommands adds the `trailbot account` directory lookups.
func RegisterAccountCommands(root *cobra.Command) {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Look up registered tenant accounts",
	}

	accountCmd.AddCommand(newAccountFindCmd())
	accountCmd.AddCommand(newAccountSearchCmd())

	root.AddCommand(accountCmd)
}

func newAccountFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <account-id>",
		Short: "Find an account by its 12-digit AWS account id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := app.service.LookupAccount(ctx, args[0])
			if err != nil {
				return err
			}
			printAccount(rec.CorpName, rec.AccountID, string(rec.AssumeRoleType))
			return nil
		},
	}
}

func newAccountSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search accounts by company name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := app.service.SearchAccount(ctx, args[0])
			if err != nil {
				return err
			}
			printAccount(rec.CorpName, rec.AccountID, string(rec.AssumeRoleType))
			return nil
		},
	}
}

func printAccount(corpName, accountID, trustType string) {
	fmt.Printf("Company:    %s\n", corpName)
	fmt.Printf("Account ID: %s\n", accountID)
	fmt.Printf("Trust type: %s\n", trustType)
}
