package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"routined/internal/config"
)

func addConfig(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, check and show the config file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	addConfigInit(cmd, ro)
	addConfigCheck(cmd, ro)
	addConfigShow(cmd, ro)
	topLevel.AddCommand(cmd)
}

func addConfigInit(parent *cobra.Command, ro *RootOptions) {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to --config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(ro.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", ro.ConfigPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Write(ro.ConfigPath, config.Default()); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", ro.ConfigPath)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file.")
	parent.AddCommand(cmd)
}

func addConfigCheck(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file without starting anything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.NewConfigManager(ro.ConfigPath).Load(); err != nil {
				return ro.Output.HandleError(err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", ro.ConfigPath)
			return err
		},
	}
	parent.AddCommand(cmd)
}

func addConfigShow(parent *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (defaults when the file is missing).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfigManager(ro.ConfigPath).LoadOrDefault()
			if err != nil {
				return ro.Output.HandleError(err)
			}
			shown := *cfg
			if n := cfg.Notifier; n != nil && n.Sinks.Telegram.Token != "" {
				masked := *n
				masked.Sinks.Telegram.Token = "********"
				shown.Notifier = &masked
			}
			if shown.Debug.Token != "" {
				shown.Debug.Token = "********"
			}
			return ro.Output.printJSON(cmd.OutOrStdout(), shown)
		},
	}
	parent.AddCommand(cmd)
}
