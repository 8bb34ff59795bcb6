package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entrypoint"
)

// RootOptions holds global state shared by all commands.
type RootOptions struct {
	JSON    bool
	Version string

	config  *config.Config
	syncLog func()
}

// NewRootCommand creates the root command for the bookshelf CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:           "bookshelf",
		Short:         "Bookshelf - personal library tracker",
		Long:          "Serve the library API and manage its storage: migrations, exports and backend flags.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.config = config.NewConfig()
			_, syncLog, err := entrypoint.NewLogger(opts.config.Log)
			if err != nil {
				return err
			}
			opts.syncLog = syncLog
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.syncLog != nil {
				opts.syncLog()
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewBackendCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))

	return cmd
}

// withApp opens the storage engine for the duration of fn.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(app *entrypoint.App) error) error {
	app, err := entrypoint.NewApp(cmd.Context(), opts.config)
	if err != nil {
		return err
	}
	runErr := fn(app)
	if err := app.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// printResult writes v as indented JSON when --json is set, otherwise text.
func printResult(w io.Writer, opts *RootOptions, v any, text string) error {
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
