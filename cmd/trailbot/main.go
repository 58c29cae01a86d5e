// trailbot resolves cross-account credentials for registered tenant
// accounts and runs CloudTrail security lookups against them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwjoung/cloudtrail-bot/cmd/trailbot/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "trailbot",
		Short: "Cross-account CloudTrail security bot",
		Long: `trailbot looks up tenant accounts in the account directory, brokers
short-lived cross-account credentials for them, and runs CloudTrail
security queries with the brokered credentials.

Secret key material is never printed; only masked forms appear in output.`,
		Version:      version,
		SilenceUsage: true,
	}

	cli.RegisterAccountCommands(rootCmd)
	cli.RegisterCredentialCommands(rootCmd)
	cli.RegisterTrailCommands(rootCmd)
	cli.RegisterToolsCommands(rootCmd)
	cli.RegisterVersionCommand(rootCmd, version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
