package exporters

import (
	"io"

	"github.com/mrlokans/bookshelf/internal/entities"
)

type BookExporter interface {
	Export(w io.Writer, books []entities.Book) (ExportResult, error)
}

type ExportResult struct {
	BooksProcessed int `json:"books_processed"`
	CoversInlined  int `json:"covers_inlined"`
	BytesWritten   int `json:"bytes_written"`
}
