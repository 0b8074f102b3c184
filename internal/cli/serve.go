package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"routined/internal/app"
)

func addServe(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder daemon.",
		Long: `Run the reminder daemon in the foreground.

It arms a reminder for the next occurrence of every task with notifications
enabled, rolls daily counters over at midnight, and follows changes made to
the store and the config file by other routined invocations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var opts []app.Option
			if ro.Verbose {
				opts = append(opts, app.WithVerbose())
			}
			a, err := app.Open(ro.ConfigPath, opts...)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
