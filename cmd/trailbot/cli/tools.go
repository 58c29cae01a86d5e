package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// RegisterToolsCommands adds the `trailbot tools` group.
func RegisterToolsCommands(root *cobra.Command) {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the bot's registered tools",
	}

	toolsCmd.AddCommand(newToolsListCmd())
	toolsCmd.AddCommand(newToolsInvokeCmd())

	root.AddCommand(toolsCmd)
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools exposed to the chat agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := loadApp(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, meta := range app.registry.List() {
				fmt.Fprintf(w, "%s\t%s\n", meta.Name, meta.Description)
			}
			return w.Flush()
		},
	}
}

func newToolsInvokeCmd() *cobra.Command {
	var rawArgs []string

	cmd := &cobra.Command{
		Use:   "invoke <tool-name>",
		Short: "Invoke one tool directly with key=value arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			toolArgs := make(map[string]string, len(rawArgs))
			for _, kv := range rawArgs {
				key, value, found := strings.Cut(kv, "=")
				if !found {
					return fmt.Errorf("argument %q is not key=value", kv)
				}
				toolArgs[key] = value
			}

			out, err := app.registry.Invoke(ctx, args[0], toolArgs)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "tool argument as key=value (repeatable)")
	return cmd
}
