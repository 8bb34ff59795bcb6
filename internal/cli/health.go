package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/entrypoint"
	"github.com/mrlokans/bookshelf/internal/health"
	"github.com/mrlokans/bookshelf/internal/storage"
)

type healthOutput struct {
	Health    health.Snapshot         `json:"health"`
	Migration storage.MigrationStatus `json:"migration"`
}

func NewHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show storage health and migration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				ctx := cmd.Context()
				status, err := app.Library.MigrationStatus(ctx)
				if err != nil {
					return fmt.Errorf("read migration marker: %w", err)
				}
				out := healthOutput{Health: app.Library.HealthSnapshot(ctx), Migration: status}
				return printResult(cmd.OutOrStdout(), opts, out, formatHealth(out))
			})
		},
	}
}

func formatHealth(out healthOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s\n", out.Health.Backend)
	fmt.Fprintf(&b, "consecutive failures: %d/%d\n", out.Health.Failures, out.Health.Threshold)
	if f := out.Health.LastFailure; f != nil {
		fmt.Fprintf(&b, "last failure: %s at %s: %s\n", f.Operation, f.At.Format("2006-01-02 15:04:05"), f.Error)
	}
	if out.Migration.Done && out.Migration.Marker != nil {
		fmt.Fprintf(&b, "migration: done at %s (%d books, %s)",
			out.Migration.Marker.CompletedAt.Format("2006-01-02 15:04:05"), out.Migration.Marker.SourceCount, out.Migration.Marker.Checksum)
	} else {
		b.WriteString("migration: pending")
	}
	return b.String()
}
