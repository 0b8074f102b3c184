// Package cli is the routined command tree. Every command except serve is
// a one-shot against the shared store; a running daemon picks the change
// up through its store watch.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"routined/internal/app"
	"routined/internal/config"
	logx "routined/pkg/logx"
)

// RootOptions are the persistent flags shared by every command.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Output     OutputOptions
}

func New() *cobra.Command {
	ro := &RootOptions{}
	cmd := &cobra.Command{
		Use:           "routined",
		Short:         "Routines, one-off tasks and counters with timed reminders.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	def, err := config.DefaultPath()
	if err != nil {
		def = "routined.yaml"
	}
	cmd.PersistentFlags().StringVarP(&ro.ConfigPath, "config", "c", def, "Path to the config file (JSON or YAML).")
	cmd.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Log debug output to stderr.")
	AddOutputArg(cmd, &ro.Output)

	AddCommands(cmd, ro)
	return cmd
}

func AddCommands(topLevel *cobra.Command, ro *RootOptions) {
	addServe(topLevel, ro)
	addDue(topLevel, ro)
	addNext(topLevel, ro)
	addTask(topLevel, ro)
	addCounter(topLevel, ro)
	addReset(topLevel, ro)
	addConfig(topLevel, ro)
	addStatus(topLevel, ro)
	addService(topLevel, ro)
}

// open opens the app for a one-shot command. Logs go to stderr so they
// never mix with command output.
func (ro *RootOptions) open() (*app.App, error) {
	level := "warn"
	if ro.Verbose {
		level = "debug"
	}
	return app.Open(ro.ConfigPath, app.WithLogger(logx.NewWriter(os.Stderr, level, true)))
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func (ro *RootOptions) withApp(fn func(a *app.App) error) error {
	a, err := ro.open()
	if err != nil {
		return ro.Output.HandleError(err)
	}
	defer a.Close()
	return ro.Output.HandleError(fn(a))
}
