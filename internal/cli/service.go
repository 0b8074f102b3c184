package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"routined/pkg/systemd"
)

func addService(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run routined under systemd.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	addServiceUnit(cmd, ro)
	addServiceStatus(cmd, ro)
	topLevel.AddCommand(cmd)
}

func addServiceUnit(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "unit",
		Short: "Print a systemd unit for this binary and config.",
		Example: `
routined service unit > ~/.config/systemd/user/routined.service
systemctl --user enable --now routined
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			cfgPath, err := filepath.Abs(ro.ConfigPath)
			if err != nil {
				return err
			}
			unit, err := systemd.UnitFile(exe, cfgPath)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), unit)
			return err
		},
	}
	parent.AddCommand(cmd)
}

func addServiceStatus(parent *cobra.Command, ro *RootOptions) {
	var (
		user bool
		unit string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the routined unit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := systemd.UnitStatus(ctx, unit, user)
			if err != nil {
				return ro.Output.HandleError(err)
			}
			w := cmd.OutOrStdout()
			if ro.Output.JSON {
				return ro.Output.printJSON(w, st)
			}
			if !st.Found() {
				_, err := fmt.Fprintf(w, "%s: not installed\n", st.Name)
				return err
			}
			state := st.Active + " (" + st.SubState + ")"
			if st.Active == "active" {
				state = green.Sprint(state)
			}
			tbl := newTable()
			tbl.AddRow(bold.Sprint("unit"), st.Name)
			tbl.AddRow(bold.Sprint("state"), state)
			if !st.ActiveSince.IsZero() {
				tbl.AddRow(bold.Sprint("since"), st.ActiveSince.Format(time.RFC1123))
			}
			if st.MainPID > 0 {
				tbl.AddRow(bold.Sprint("pid"), st.MainPID)
			}
			if st.Description != "" {
				tbl.AddRow(bold.Sprint("description"), st.Description)
			}
			_, err = fmt.Fprintln(w, tbl)
			return err
		},
	}
	cmd.Flags().BoolVar(&user, "user", true, "Query the user manager instead of the system one.")
	cmd.Flags().StringVar(&unit, "unit", systemd.UnitName, "Unit name.")
	parent.AddCommand(cmd)
}
