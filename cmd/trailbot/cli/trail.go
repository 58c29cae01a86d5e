package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwjoung/cloudtrail-bot/internal/tools"
)

// RegisterTrailCommands adds the `trailbot trail` lookup group.
func RegisterTrailCommands(root *cobra.Command) {
	trailCmd := &cobra.Command{
		Use:   "trail",
		Short: "CloudTrail queries against a tenant account",
	}

	trailCmd.AddCommand(newTrailLookupCmd())
	trailCmd.AddCommand(newTrailLoginsCmd())
	trailCmd.AddCommand(newTrailErrorsCmd())
	trailCmd.AddCommand(newTrailAnalyzeCmd())

	root.AddCommand(trailCmd)
}

func newTrailLookupCmd() *cobra.Command {
	req := tools.LookupRequest{}

	cmd := &cobra.Command{
		Use:   "lookup <account-id>",
		Short: "Look up trail events with an optional filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			req.AccountID = args[0]
			out, err := app.trail.LookupEvents(ctx, req)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.StartTime, "start", "1 day ago", "window start (e.g. \"3 hours ago\", \"2026-01-15\")")
	cmd.Flags().StringVar(&req.EndTime, "end", "now", "window end")
	cmd.Flags().StringVar(&req.EventName, "event-name", "", "filter by event name")
	cmd.Flags().StringVar(&req.Username, "username", "", "filter by user")
	cmd.Flags().StringVar(&req.ResourceName, "resource", "", "filter by resource name")
	cmd.Flags().StringVar(&req.EventSource, "source", "", "filter by event source")
	cmd.Flags().StringVar(&req.Region, "region", "", "query region (default ap-northeast-2)")
	cmd.Flags().IntVar(&req.MaxResults, "max", 20, "maximum events")
	return cmd
}

func newTrailLoginsCmd() *cobra.Command {
	var start, region string
	var max int

	cmd := &cobra.Command{
		Use:   "logins <account-id>",
		Short: "Review console sign-in activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := app.trail.ConsoleLogins(ctx, args[0], start, region, max)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "7 days ago", "window start")
	cmd.Flags().StringVar(&region, "region", "", "query region (sign-ins default to us-east-1)")
	cmd.Flags().IntVar(&max, "max", 30, "maximum events")
	return cmd
}

func newTrailErrorsCmd() *cobra.Command {
	var start, region string
	var max int

	cmd := &cobra.Command{
		Use:   "errors <account-id>",
		Short: "List recent failed API calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := app.trail.ErrorEvents(ctx, args[0], start, region, max)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "1 day ago", "window start")
	cmd.Flags().StringVar(&region, "region", "", "query region (default ap-northeast-2)")
	cmd.Flags().IntVar(&max, "max", 30, "maximum events")
	return cmd
}

func newTrailAnalyzeCmd() *cobra.Command {
	var start, region string

	cmd := &cobra.Command{
		Use:   "analyze <account-id>",
		Short: "Classify recent security-sensitive events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, cleanup, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := app.trail.AnalyzeSecurity(ctx, args[0], start, region)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "7 days ago", "window start")
	cmd.Flags().StringVar(&region, "region", "", "query region (default ap-northeast-2)")
	return cmd
}
