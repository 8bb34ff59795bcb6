package covers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// DefaultMaxCoverBytes bounds a downloaded cover.
const DefaultMaxCoverBytes = 2 << 20

// Fetcher downloads cover images so they can be stored as blobs and survive
// the remote host going away.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewFetcher(maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCoverBytes
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   maxBytes,
	}
}

// Fetch downloads url and returns it as a blob cover.
func (f *Fetcher) Fetch(ctx context.Context, url string) (entities.CoverRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return entities.NoCover(), err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return entities.NoCover(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entities.NoCover(), fmt.Errorf("failed to fetch cover: status %d", resp.StatusCode)
	}

	mimeType := entities.DefaultCoverMimeType
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			if !strings.HasPrefix(parsed, "image/") {
				return entities.NoCover(), fmt.Errorf("not an image: %s", parsed)
			}
			mimeType = parsed
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return entities.NoCover(), err
	}
	if int64(len(data)) > f.maxBytes {
		return entities.NoCover(), fmt.Errorf("cover exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return entities.NoCover(), fmt.Errorf("empty cover")
	}
	return entities.BlobCover(data, mimeType), nil
}
