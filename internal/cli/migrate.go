package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/entrypoint"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move legacy documents into the current store",
		Long: `Run the legacy migration now. Safe to repeat: once the migration
marker is written, later runs report already_done and change nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				result, err := app.Library.Migrate(cmd.Context())
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				text := fmt.Sprintf("status: %s\nbooks: %d\nchecksum: %s", result.Status, result.Count, result.Checksum)
				return printResult(cmd.OutOrStdout(), opts, result, text)
			})
		},
	}
}
