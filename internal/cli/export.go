package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/entrypoint"
)

type exportOutput struct {
	Path          string `json:"path"`
	Books         int    `json:"books"`
	CoversInlined int    `json:"covers_inlined"`
	Bytes         int64  `json:"bytes"`
}

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the library to a JSON file",
		Long: `Export every book, covers inlined as data URIs, to a JSON file.
When --out is a directory a timestamped file name is used inside it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = opts.config.Storage.ExportDir
			}
			return withApp(cmd, opts, func(app *entrypoint.App) error {
				path, result, err := app.Library.ExportLibraryToFile(cmd.Context(), out)
				app.Audit.LogExport(result.BooksProcessed, path, err)
				if err != nil {
					return fmt.Errorf("export failed: %w", err)
				}
				output := exportOutput{
					Path:          path,
					Books:         result.BooksProcessed,
					CoversInlined: result.CoversInlined,
					Bytes:         int64(result.BytesWritten),
				}
				return printResult(cmd.OutOrStdout(), opts, output, fmt.Sprintf("exported %d books to %s", output.Books, path))
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: STORAGE_EXPORT_DIR)")
	return cmd
}
