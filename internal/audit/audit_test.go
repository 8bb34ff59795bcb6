package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	archiver := NewArchiver(dir)

	t.Run("SaveJSON creates directory and writes file", func(t *testing.T) {
		data := map[string]any{"id": "1", "pages": 42}

		filename, err := archiver.SaveJSON("legacy", data)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filename, "legacy-"))
		assert.True(t, strings.HasSuffix(filename, ".json"))

		content, err := os.ReadFile(filepath.Join(dir, filename))
		require.NoError(t, err)

		var saved map[string]any
		require.NoError(t, json.Unmarshal(content, &saved))
		assert.Equal(t, "1", saved["id"])
		assert.Equal(t, float64(42), saved["pages"]) // JSON numbers decode as float64
	})

	t.Run("SaveJSON generates unique filenames", func(t *testing.T) {
		first, err := archiver.SaveJSON("legacy", []string{"a"})
		require.NoError(t, err)
		second, err := archiver.SaveJSON("legacy", []string{"a"})
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}
