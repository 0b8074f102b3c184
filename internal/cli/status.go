package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"routined/internal/app"
	"routined/internal/config"
	"routined/internal/observability/debugserver"
)

func addStatus(topLevel *cobra.Command, ro *RootOptions) {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Ask the running daemon which reminders are armed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfigManager(ro.ConfigPath).LoadOrDefault()
			if err != nil {
				return ro.Output.HandleError(err)
			}
			if addr == "" {
				if !cfg.Debug.Enabled {
					return ro.Output.HandleError(fmt.Errorf("debug server disabled in %s", ro.ConfigPath))
				}
				addr = cfg.Debug.Addr
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			var st app.Status
			if err := debugserver.FetchStatus(ctx, addr, cfg.Debug.Token, &st); err != nil {
				return ro.Output.HandleError(err)
			}
			if ro.Output.JSON {
				return ro.Output.printJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon status address (default debug.addr from the config).")
	topLevel.AddCommand(cmd)
}

func printStatus(w io.Writer, st app.Status) {
	sched := "on"
	if !st.Scheduler.Enabled {
		sched = faint.Sprint("off")
	}
	notif := "on"
	if !st.Notifier {
		notif = faint.Sprint("off")
	}
	tbl := newTable()
	tbl.AddRow(bold.Sprint("storage"), st.Storage)
	tbl.AddRow(bold.Sprint("timezone"), st.Scheduler.Timezone)
	tbl.AddRow(bold.Sprint("scheduler"), sched)
	tbl.AddRow(bold.Sprint("notifier"), notif)
	tbl.AddRow(bold.Sprint("tasks"), st.Scheduler.Tasks)
	if st.Loops.Restarts > 0 || st.Loops.Panics > 0 {
		tbl.AddRow(bold.Sprint("restarts"), fmt.Sprintf("%d (%d panics)", st.Loops.Restarts, st.Loops.Panics))
	}
	for sink, until := range st.Cooling {
		tbl.AddRow(bold.Sprint("paused sink"), fmt.Sprintf("%s until %s", sink, until.Format("15:04")))
	}
	_, _ = fmt.Fprintln(w, tbl)
	_, _ = fmt.Fprintln(w)

	if len(st.Scheduler.Pending) == 0 {
		_, _ = faint.Fprintln(w, "no reminders armed")
	} else {
		tbl = newTable()
		tbl.AddRow(bold.Sprint("FIRES"), bold.Sprint("IN"), bold.Sprint("TASK"), bold.Sprint("FOR"), bold.Sprint("ID"))
		for _, p := range st.Scheduler.Pending {
			tbl.AddRow(p.FireAt.Format("2006-01-02 15:04"), until(st.Now, p.FireAt), p.Title, p.At.Format("15:04"), idCol.Sprint(shortID(p.TaskID)))
		}
		_, _ = fmt.Fprintln(w, tbl)
	}

	if n := len(st.Deliveries); n > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "recent deliveries")
		tbl = newTable()
		for _, d := range st.Deliveries[max(0, n-5):] {
			tbl.AddRow(d.At.Format("2006-01-02 15:04"), faint.Sprint(d.Sink), d.Text)
		}
		_, _ = fmt.Fprintln(w, tbl)
	}
}
