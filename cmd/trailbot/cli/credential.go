package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwjoung/cloudtrail-bot/internal/credential"
	"github.com/jwjoung/cloudtrail-bot/internal/logging"
)

// RegisterCredentialCommands adds the `trailbot credential` group.
func RegisterCredentialCommands(root *cobra.Command) {
	credCmd := &cobra.Command{
		Use:   "credential",
		Short: "Broker cross-account credentials",
	}

	credCmd.AddCommand(newCredentialResolveCmd())

	root.AddCommand(credCmd)
}

func newCredentialResolveCmd() *cobra.Command {
	var byName bool

	cmd := &cobra.Command{
		Use:   "resolve <account-id|name>",
		Short: "Broker a credential for an account and show the masked result",
		Long: `Resolves the account in the directory, assumes the cross-account
role and prints a masked view of the resulting triple. The secret key
and session token are never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var issued *credential.Issued
			if byName {
				issued, err = app.service.ResolveByName(ctx, args[0])
			} else {
				issued, err = app.service.ResolveByAccountID(ctx, args[0])
			}
			if err != nil {
				return err
			}

			fmt.Printf("Company:       %s\n", issued.Account.CorpName)
			fmt.Printf("Account ID:    %s\n", issued.Account.AccountID)
			fmt.Printf("Trust type:    %s\n", issued.Account.AssumeRoleType)
			fmt.Printf("Access key:    %s\n", logging.MaskAccessKeyID(issued.Credentials.AccessKeyID))
			fmt.Printf("Secret key:    %s\n", logging.RedactValue(issued.Credentials.SecretAccessKey))
			fmt.Printf("Session token: %s\n", logging.RedactValue(issued.Credentials.SessionToken))
			return nil
		},
	}

	cmd.Flags().BoolVar(&byName, "by-name", false, "treat the argument as a company name instead of an account id")
	return cmd
}
