package exporters

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/entities"
)

var exportTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestExporter() *JSONExporter {
	e := NewJSONExporter()
	e.now = func() time.Time { return exportTime }
	return e
}

func sampleBooks() []entities.Book {
	return []entities.Book{
		{
			ID: "1", Title: "Dune", Author: "Frank Herbert", Status: entities.StatusCompleted,
			AddedAt: exportTime, Version: 2, CustomOrder: entities.IntPtr(0),
			Cover: entities.BlobCover([]byte{0xff, 0xd8}, "image/jpeg"),
		},
		{
			ID: "2", Title: "Emma", Author: "Jane Austen", Status: entities.StatusUnread,
			AddedAt: exportTime, Version: 1, CustomOrder: entities.IntPtr(1),
			Cover: entities.URLCover("https://covers.example.com/emma.jpg"),
		},
	}
}

func TestJSONExporter_Export(t *testing.T) {
	t.Run("writes document with inlined covers", func(t *testing.T) {
		var buf bytes.Buffer

		result, err := newTestExporter().Export(&buf, sampleBooks())
		require.NoError(t, err)
		assert.Equal(t, 2, result.BooksProcessed)
		assert.Equal(t, 1, result.CoversInlined)
		assert.Equal(t, buf.Len(), result.BytesWritten)

		var doc ExportDocument
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		assert.Equal(t, FormatVersion, doc.FormatVersion)
		assert.Equal(t, 2, doc.Count)
		assert.True(t, exportTime.Equal(doc.ExportedAt))
		require.Len(t, doc.Books, 2)
		assert.Equal(t, "data:image/jpeg;base64,/9g=", doc.Books[0].Cover)
		assert.Equal(t, "https://covers.example.com/emma.jpg", doc.Books[1].Cover)
	})

	t.Run("empty library exports empty array", func(t *testing.T) {
		var buf bytes.Buffer

		_, err := newTestExporter().Export(&buf, nil)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"books": []`)
		assert.Contains(t, buf.String(), `"count": 0`)
	})

	t.Run("exported books normalize back to the same records", func(t *testing.T) {
		books := sampleBooks()
		doc, _ := newTestExporter().Document(books)

		restored := doc.Books[0].Normalize(0, exportTime)
		assert.Equal(t, books[0].ID, restored.ID)
		assert.Equal(t, books[0].Version, restored.Version)
		assert.True(t, books[0].Cover.Equal(restored.Cover))
	})
}

func TestJSONExporter_ExportToFile(t *testing.T) {
	t.Run("directory target uses timestamped name", func(t *testing.T) {
		dir := t.TempDir()

		path, result, err := newTestExporter().ExportToFile(dir, sampleBooks())
		require.NoError(t, err)
		assert.Equal(t, 2, result.BooksProcessed)
		assert.Equal(t, filepath.Join(dir, "bookshelf-export-20240501T080000Z.json"), path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "{"))
	})

	t.Run("explicit file path creates parents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "out.json")

		written, _, err := newTestExporter().ExportToFile(path, sampleBooks())
		require.NoError(t, err)
		assert.Equal(t, path, written)
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})
}
