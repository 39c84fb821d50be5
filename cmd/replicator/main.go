package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shopgate/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

// Replicator process entrypoint.
// Data flow:
// 1) Load config and connect both stores, the bus and the search index.
// 2) Subscribe to the change and domain-event channels.
// 3) Optionally copy every table once, then keep applying live changes.
func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "replicator",
		Short:         "Keep the gateway read store in sync with the write store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newBootstrapCommand())
	return root
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume change events and serve health, metrics and live updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.BuildReplicator(ctx)
			if err != nil {
				return fmt.Errorf("bootstrap replicator failed: %w", err)
			}
			defer closeApp(app)
			return app.Run(ctx)
		},
	}
}

func newBootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Copy every replicated table from the write store once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.BuildReplicator(ctx)
			if err != nil {
				return fmt.Errorf("bootstrap replicator failed: %w", err)
			}
			defer closeApp(app)

			report, err := app.RunBootstrap(ctx)
			for _, table := range report.Tables {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s copied=%d skipped=%d\n", table.Table, table.Copied, table.Skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "search documents projected=%d\n", report.Projected)
			return err
		},
	}
}

func closeApp(app *bootstrap.ReplicatorApp) {
	if err := app.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "replicator shutdown close failed: %v\n", err)
	}
}
