package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"routined/internal/app"
)

func addDue(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "due [day]",
		Aliases: []string{"today", "agenda"},
		Short:   "Show what is due on a day (default today).",
		Example: `
routined due
routined due tomorrow
routined due 2024-03-04
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				today := a.Today()
				d, err := ParseDay(strings.Join(args, ""), today)
				if err != nil {
					return err
				}
				items, err := a.DueOn(context.Background(), d)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if ro.Output.JSON {
					return ro.Output.printJSON(w, items)
				}
				title := fmt.Sprintf("%s, %s", d.Weekday(), d)
				if d == today {
					title = "Today, " + title
				}
				printAgenda(w, title, items)
				return nil
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addNext(topLevel *cobra.Command, ro *RootOptions) {
	var limit int
	cmd := &cobra.Command{
		Use:   "next",
		Short: "List the next pending occurrence of every task.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(func(a *app.App) error {
				items, err := a.Upcoming(context.Background(), limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if ro.Output.JSON {
					return ro.Output.printJSON(w, items)
				}
				printUpcoming(w, items, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Show at most this many tasks (0 for all).")
	topLevel.AddCommand(cmd)
}
