package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"routined/internal/app"
	"routined/internal/task"
)

func addTask(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks", "t"},
		Short:   "Manage tasks and routines.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	addTaskAdd(cmd, ro)
	addTaskList(cmd, ro)
	addTaskDone(cmd, ro)
	addTaskSkip(cmd, ro)
	addTaskRemove(cmd, ro)
	topLevel.AddCommand(cmd)
}

func addTaskAdd(parent *cobra.Command, ro *RootOptions) {
	to := &TaskOptions{}
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a one-time task or a routine.",
		Example: `
routined task add "pay rent" --date 2024-04-01 --at 10:00 --notify
routined task add gym --every weekly --days mon,wed,fri --at 07:30 -n --advance 30m
routined task add "water plants" --every custom --interval 3 --unit days
routined task add "review budget" --every monthly --day 31
`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a title")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				t, err := to.Task(strings.Join(args, " "), a.Today())
				if err != nil {
					return err
				}
				t, err = a.AddTask(context.Background(), t)
				if err != nil {
					return err
				}
				return ro.taskResult(cmd, "added", t)
			})
		},
	}
	AddTaskArgs(cmd, to)
	parent.AddCommand(cmd)
}

func addTaskList(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every task.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(func(a *app.App) error {
				ts, err := a.Tasks(context.Background())
				if err != nil {
					return err
				}
				if ro.Output.JSON {
					return ro.Output.printJSON(cmd.OutOrStdout(), ts)
				}
				printTasks(cmd.OutOrStdout(), ts)
				return nil
			})
		},
	}
	parent.AddCommand(cmd)
}

func addTaskDone(parent *cobra.Command, ro *RootOptions) {
	do := &DayOptions{}
	cmd := &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"complete", "toggle"},
		Short:   "Toggle completion of a task for a day.",
		Example: `
routined task done 3f2a91c0
routined task done 3f2a91c0 --on yesterday
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				d, err := do.Day(a.Today())
				if err != nil {
					return err
				}
				t, err := a.ToggleCompletion(context.Background(), args[0], d)
				if err != nil {
					return err
				}
				verb := "reopened"
				if task.IsCompletedOn(t, d) {
					verb = "completed"
				}
				return ro.taskResult(cmd, verb, t)
			})
		},
	}
	AddDayArg(cmd, do, "Day to toggle (routines only, default today).")
	parent.AddCommand(cmd)
}

func addTaskSkip(parent *cobra.Command, ro *RootOptions) {
	do := &DayOptions{}
	cmd := &cobra.Command{
		Use:   "skip <id>",
		Short: "Remove one occurrence of a routine.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				d, err := do.Day(a.Today())
				if err != nil {
					return err
				}
				t, err := a.ExcludeOccurrence(context.Background(), args[0], d)
				if err != nil {
					return err
				}
				return ro.taskResult(cmd, "skipped "+d.String()+" of", t)
			})
		},
	}
	AddDayArg(cmd, do, "Occurrence to skip (default today).")
	parent.AddCommand(cmd)
}

func addTaskRemove(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a task.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(func(a *app.App) error {
				t, err := a.DeleteTask(context.Background(), args[0])
				if err != nil {
					return err
				}
				return ro.taskResult(cmd, "deleted", t)
			})
		},
	}
	parent.AddCommand(cmd)
}

func (ro *RootOptions) taskResult(cmd *cobra.Command, verb string, t task.Task) error {
	w := cmd.OutOrStdout()
	if ro.Output.JSON {
		return ro.Output.printJSON(w, t)
	}
	_, err := fmt.Fprintf(w, "%s %s %s (%s)\n", verb, idCol.Sprint(shortID(t.ID)), bold.Sprint(t.Title), Schedule(t))
	return err
}
