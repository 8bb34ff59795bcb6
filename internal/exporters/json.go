package exporters

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/utils"
)

// FormatVersion is bumped whenever the export document changes shape.
const FormatVersion = 1

// ExportDocument is the top-level JSON written by JSONExporter. Books use the
// legacy document shape, so covers are inlined as data URIs and an export can
// be seeded back into a legacy store.
type ExportDocument struct {
	ExportedAt    time.Time             `json:"exportedAt"`
	FormatVersion int                   `json:"formatVersion"`
	Count         int                   `json:"count"`
	Books         []entities.LegacyBook `json:"books"`
}

type JSONExporter struct {
	now    func() time.Time
	indent bool
}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{now: time.Now, indent: true}
}

// Document builds the export document without writing it.
func (e *JSONExporter) Document(books []entities.Book) (ExportDocument, int) {
	doc := ExportDocument{
		ExportedAt:    e.now().UTC(),
		FormatVersion: FormatVersion,
		Count:         len(books),
		Books:         make([]entities.LegacyBook, 0, len(books)),
	}
	inlined := 0
	for _, b := range books {
		if b.Cover.Normalize().Kind() == entities.CoverKindBlob {
			inlined++
		}
		doc.Books = append(doc.Books, entities.NewLegacyBook(b))
	}
	return doc, inlined
}

func (e *JSONExporter) Export(w io.Writer, books []entities.Book) (ExportResult, error) {
	doc, inlined := e.Document(books)

	var (
		data []byte
		err  error
	)
	if e.indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to encode export: %w", err)
	}

	n, err := w.Write(data)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to write export: %w", err)
	}
	return ExportResult{BooksProcessed: len(books), CoversInlined: inlined, BytesWritten: n}, nil
}

// FileName is the suggested name for an export taken now.
func (e *JSONExporter) FileName() string {
	return utils.TimestampedFilename("bookshelf-export", e.now(), ".json")
}

// ExportToFile writes the export to path, creating parent directories. When
// path is a directory the timestamped FileName is used inside it.
func (e *JSONExporter) ExportToFile(path string, books []entities.Book) (string, ExportResult, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, e.FileName())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", ExportResult{}, fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", ExportResult{}, fmt.Errorf("failed to create export file: %w", err)
	}
	result, err := e.Export(f, books)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close export file: %w", closeErr)
	}
	if err != nil {
		return "", ExportResult{}, err
	}
	return path, result, nil
}
