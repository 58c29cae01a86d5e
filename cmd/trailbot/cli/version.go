package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RegisterVersionCommand adds an explicit version subcommand alongside
// cobra's --version flag, for scripts that expect one.
func RegisterVersionCommand(root *cobra.Command, version string) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the trailbot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trailbot %s\n", version)
		},
	})
}
