package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/entrypoint"
	"github.com/mrlokans/bookshelf/internal/flags"
)

// NewBackendCommand groups the storage flag subcommands.
func NewBackendCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Show or change the active storage backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the storage flags and where their values come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				return printFlags(cmd, opts, app.Flags.Info(cmd.Context()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <current|legacy>",
		Short:     "Persist a backend override",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(flags.BackendCurrent), string(flags.BackendLegacy)},
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := flags.ParseBackend(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				if err := app.Flags.SetBackend(cmd.Context(), backend); err != nil {
					return err
				}
				app.Audit.LogSettings("storage_backend_changed", fmt.Sprintf("Storage backend set to %s", backend))
				return printFlags(cmd, opts, app.Flags.Info(cmd.Context()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dual-run <on|off>",
		Short: "Enable or disable dual-read diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				if err := app.Flags.SetDualRun(cmd.Context(), enabled); err != nil {
					return err
				}
				app.Audit.LogSettings("storage_dual_run_changed", fmt.Sprintf("Dual-run set to %t", enabled))
				return printFlags(cmd, opts, app.Flags.Info(cmd.Context()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop persisted overrides so configuration applies again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				if err := app.Flags.Reset(cmd.Context()); err != nil {
					return err
				}
				app.Audit.LogSettings("storage_flags_reset", "Storage flags reset to configuration")
				return printFlags(cmd, opts, app.Flags.Info(cmd.Context()))
			})
		},
	})

	return cmd
}

func printFlags(cmd *cobra.Command, opts *RootOptions, info flags.Info) error {
	text := fmt.Sprintf("backend: %s (%s)\ndual-run: %s (%s)",
		info.Backend.Value, info.Backend.Source, info.DualRun.Value, info.DualRun.Source)
	return printResult(cmd.OutOrStdout(), opts, info, text)
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return v, nil
}
