package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"routined/internal/app"
)

func addReset(topLevel *cobra.Command, ro *RootOptions) {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset --all",
		Short: "Delete every task and counter.",
		Long: `Delete every task, counter and counter history entry from the store.
A running daemon cancels all of its reminders when it sees the change.
There is no undo; --all is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all {
				return errors.New("refusing to reset without --all")
			}
			return ro.withApp(func(a *app.App) error {
				n, err := a.ResetAll(context.Background())
				if err != nil {
					return err
				}
				if ro.Output.JSON {
					return ro.Output.printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Confirm deleting all tasks and counters.")
	topLevel.AddCommand(cmd)
}
