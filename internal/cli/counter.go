package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"routined/internal/app"
	"routined/internal/counter"
)

func addCounter(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "counter",
		Aliases: []string{"counters", "c"},
		Short:   "Manage daily and total counters.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	addCounterAdd(cmd, ro)
	addCounterList(cmd, ro)
	addCounterStep(cmd, ro, "inc", "Add one to a counter.", (*app.App).Increment)
	addCounterStep(cmd, ro, "dec", "Subtract one from a counter (never below zero).", (*app.App).Decrement)
	addCounterHistory(cmd, ro)
	addCounterRemove(cmd, ro)
	addCounterReset(cmd, ro)
	topLevel.AddCommand(cmd)
}

func addCounterAdd(parent *cobra.Command, ro *RootOptions) {
	var (
		typ        string
		goal       int
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a counter.",
		Example: `
routined counter add water --goal 8
routined counter add "books read" --type total
`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a name")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				today := a.Today()
				c := counter.Counter{
					Name: strings.Join(args, " "),
					Type: counter.Type(strings.ToLower(typ)),
					Goal: goal,
				}
				var err error
				if c.Start, err = ParseDay(start, today); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				if end != "" {
					if c.End, err = ParseDay(end, today); err != nil {
						return fmt.Errorf("--end: %w", err)
					}
				}
				c, err = a.AddCounter(context.Background(), c)
				if err != nil {
					return err
				}
				return ro.counterResult(cmd, "added", c)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&typ, "type", string(counter.Daily), "daily (reset every midnight) or total.")
	f.IntVar(&goal, "goal", 0, "Target value.")
	f.StringVar(&start, "start", "", "First active day (default today).")
	f.StringVar(&end, "end", "", "Last active day.")
	parent.AddCommand(cmd)
}

func addCounterList(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List counters with today's values.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(func(a *app.App) error {
				cs, err := a.Counters(context.Background())
				if err != nil {
					return err
				}
				if ro.Output.JSON {
					return ro.Output.printJSON(cmd.OutOrStdout(), cs)
				}
				printCounters(cmd.OutOrStdout(), cs, a.Today())
				return nil
			})
		},
	}
	parent.AddCommand(cmd)
}

func addCounterStep(parent *cobra.Command, ro *RootOptions, use, short string, step func(*app.App, context.Context, string) (counter.Counter, error)) {
	cmd := &cobra.Command{
		Use:   use + " <name|id>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				c, err := step(a, context.Background(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return ro.counterResult(cmd, "", c)
			})
		},
	}
	parent.AddCommand(cmd)
}

func addCounterHistory(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "history <name|id>",
		Short: "Show the recorded daily values of a counter.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				c, es, err := a.History(context.Background(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if ro.Output.JSON {
					return ro.Output.printJSON(cmd.OutOrStdout(), es)
				}
				printHistory(cmd.OutOrStdout(), c, es)
				return nil
			})
		},
	}
	parent.AddCommand(cmd)
}

func addCounterRemove(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "rm <name|id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a counter and its history.",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				c, err := a.DeleteCounter(context.Background(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return ro.counterResult(cmd, "deleted", c)
			})
		},
	}
	parent.AddCommand(cmd)
}

func addCounterReset(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set today's daily counters back to zero.",
		Long:  "Set every daily counter active today back to zero. Today's values are not recorded in the history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(func(a *app.App) error {
				cs, err := a.ResetDailyCounters(context.Background())
				if err != nil {
					return err
				}
				if ro.Output.JSON {
					return ro.Output.printJSON(cmd.OutOrStdout(), cs)
				}
				for _, c := range cs {
					if err := ro.counterResult(cmd, "reset", c); err != nil {
						return err
					}
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d daily counters reset\n", len(cs))
				return err
			})
		},
	}
	parent.AddCommand(cmd)
}

func (ro *RootOptions) counterResult(cmd *cobra.Command, verb string, c counter.Counter) error {
	w := cmd.OutOrStdout()
	if ro.Output.JSON {
		return ro.Output.printJSON(w, c)
	}
	value := fmt.Sprint(c.Value)
	if c.Goal > 0 {
		value = fmt.Sprintf("%d/%d", c.Value, c.Goal)
	}
	if c.GoalReached() {
		value = green.Sprint(value + " ✔")
	}
	if verb != "" {
		verb += " "
	}
	_, err := fmt.Fprintf(w, "%s%s %s\n", verb, bold.Sprint(c.Name), value)
	return err
}
