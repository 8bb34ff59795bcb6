package covers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/entities"
)

func newTestResolver(url string) *OpenLibraryResolver {
	return NewOpenLibraryResolver(url, WithRateLimit(0), WithCoversURL("https://covers.test"))
}

func TestOpenLibraryResolver_Resolve(t *testing.T) {
	t.Run("returns cover of best match", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search.json", r.URL.Path)
			assert.Equal(t, "Dune Frank Herbert", r.URL.Query().Get("q"))
			_ = json.NewEncoder(w).Encode(searchResult{Docs: []searchDoc{
				{Title: "Dune Messiah", AuthorName: []string{"Frank Herbert"}, CoverI: 1},
				{Title: "Dune", AuthorName: []string{"Frank Herbert"}, CoverI: 42},
			}})
		}))
		defer server.Close()

		url, err := newTestResolver(server.URL).Resolve(context.Background(), "Dune", "Frank Herbert")
		require.NoError(t, err)
		assert.Equal(t, "https://covers.test/b/id/42-L.jpg", url)
	})

	t.Run("falls back to isbn cover", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(searchResult{Docs: []searchDoc{{Title: "Emma", ISBN: []string{"9780141439587"}}}})
		}))
		defer server.Close()

		url, err := newTestResolver(server.URL).Resolve(context.Background(), "Emma", "")
		require.NoError(t, err)
		assert.Equal(t, "https://covers.test/b/isbn/9780141439587-L.jpg", url)
	})

	t.Run("no results is empty url", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(searchResult{})
		}))
		defer server.Close()

		url, err := newTestResolver(server.URL).Resolve(context.Background(), "Unknown", "")
		require.NoError(t, err)
		assert.Empty(t, url)
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(searchResult{Docs: []searchDoc{{Title: "Dune", CoverI: 7}}})
		}))
		defer server.Close()

		url, err := newTestResolver(server.URL).Resolve(context.Background(), "Dune", "")
		require.NoError(t, err)
		assert.Equal(t, "https://covers.test/b/id/7-L.jpg", url)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := newTestResolver(server.URL).Resolve(context.Background(), "Dune", "")
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("requires title", func(t *testing.T) {
		_, err := newTestResolver("http://unused").Resolve(context.Background(), "  ", "x")
		assert.Error(t, err)
	})
}

func TestFindBestMatch(t *testing.T) {
	docs := []searchDoc{
		{Title: "The Hobbit", AuthorName: []string{"Someone Else"}},
		{Title: "The Hobbit", AuthorName: []string{"J.R.R. Tolkien"}, CoverI: 5},
	}

	best := findBestMatch(docs, "The Hobbit", "J.R.R. Tolkien")
	require.NotNil(t, best)
	assert.Equal(t, 5, best.CoverI)
	assert.Nil(t, findBestMatch(nil, "x", ""))
}

func TestFetcher_Fetch(t *testing.T) {
	t.Run("downloads image as blob", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		}))
		defer server.Close()

		cover, err := NewFetcher(0).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, entities.CoverKindBlob, cover.Kind())
		assert.Equal(t, "image/png", cover.MimeType())
		assert.Equal(t, []byte("png-bytes"), cover.Blob())
	})

	t.Run("rejects oversized covers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(make([]byte, 64))
		}))
		defer server.Close()

		_, err := NewFetcher(16).Fetch(context.Background(), server.URL)
		assert.Error(t, err)
	})

	t.Run("rejects non-images", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>"))
		}))
		defer server.Close()

		_, err := NewFetcher(0).Fetch(context.Background(), server.URL)
		assert.Error(t, err)
	})
}
