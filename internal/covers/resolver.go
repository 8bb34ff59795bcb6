// Package covers resolves a title/author pair to a cover image and optionally
// downloads it so it can be stored as a blob.
package covers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const userAgent = "Bookshelf/1.0 (+https://github.com/mrlokans/bookshelf)"

// Resolver finds a cover URL for a book. An empty URL with a nil error means
// nothing suitable was found.
type Resolver interface {
	Resolve(ctx context.Context, title, author string) (string, error)
}

// OpenLibraryResolver searches the OpenLibrary catalogue.
type OpenLibraryResolver struct {
	httpClient  *http.Client
	baseURL     string
	coversURL   string
	maxTries    uint
	rateLimiter *rateLimiter
}

type ResolverOption func(*OpenLibraryResolver)

func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *OpenLibraryResolver) { r.httpClient = c }
}

// WithCoversURL overrides the image host used to build cover URLs.
func WithCoversURL(u string) ResolverOption {
	return func(r *OpenLibraryResolver) {
		if u != "" {
			r.coversURL = strings.TrimRight(u, "/")
		}
	}
}

func WithMaxTries(n uint) ResolverOption {
	return func(r *OpenLibraryResolver) { r.maxTries = n }
}

// WithRateLimit sets the minimum interval between API calls.
func WithRateLimit(interval time.Duration) ResolverOption {
	return func(r *OpenLibraryResolver) { r.rateLimiter = newRateLimiter(interval) }
}

func NewOpenLibraryResolver(baseURL string, opts ...ResolverOption) *OpenLibraryResolver {
	r := &OpenLibraryResolver{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		coversURL:   "https://covers.openlibrary.org",
		maxTries:    3,
		rateLimiter: newRateLimiter(time.Second), // 1 request per second
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Since(r.lastCall)
	if since < r.interval {
		time.Sleep(r.interval - since)
	}
	r.lastCall = time.Now()
}

// Resolve searches by title (and author when known) and returns the cover of
// the best match. Transient failures (network, 5xx, 429) are retried with
// exponential backoff.
func (r *OpenLibraryResolver) Resolve(ctx context.Context, title, author string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title is required")
	}

	result, err := backoff.Retry(ctx, func() (*searchResult, error) {
		return r.search(ctx, title, author)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(r.maxTries))
	if err != nil {
		return "", err
	}
	if len(result.Docs) == 0 {
		return "", nil
	}

	doc := findBestMatch(result.Docs, title, author)
	coverURL := r.coverURL(doc)
	zap.S().Named("covers").Debugw("Cover resolved", "title", title, "author", author, "url", coverURL)
	return coverURL, nil
}

func (r *OpenLibraryResolver) search(ctx context.Context, title, author string) (*searchResult, error) {
	r.rateLimiter.wait()

	q := title
	if author != "" {
		q = fmt.Sprintf("%s %s", title, author)
	}
	searchURL := fmt.Sprintf("%s/search.json?q=%s&limit=5", r.baseURL, url.QueryEscape(q))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode search response: %w", err))
	}
	return &result, nil
}

func (r *OpenLibraryResolver) coverURL(doc *searchDoc) string {
	switch {
	case doc == nil:
		return ""
	case doc.CoverI != 0:
		return fmt.Sprintf("%s/b/id/%d-L.jpg", r.coversURL, doc.CoverI)
	case len(doc.ISBN) > 0:
		return fmt.Sprintf("%s/b/isbn/%s-L.jpg", r.coversURL, doc.ISBN[0])
	case doc.CoverEditionKey != "":
		return fmt.Sprintf("%s/b/olid/%s-L.jpg", r.coversURL, doc.CoverEditionKey)
	}
	return ""
}

// findBestMatch prefers exact title and author matches, then docs that have a cover.
func findBestMatch(docs []searchDoc, title, author string) *searchDoc {
	titleLower := strings.ToLower(title)
	authorLower := strings.ToLower(author)

	var bestMatch *searchDoc
	bestScore := -1

	for i := range docs {
		doc := &docs[i]
		score := 0

		if strings.ToLower(doc.Title) == titleLower {
			score += 10
		} else if strings.Contains(strings.ToLower(doc.Title), titleLower) {
			score += 5
		}

		if author != "" {
			for _, docAuthor := range doc.AuthorName {
				if strings.ToLower(docAuthor) == authorLower {
					score += 10
					break
				} else if strings.Contains(strings.ToLower(docAuthor), authorLower) {
					score += 5
					break
				}
			}
		}

		if doc.CoverI != 0 {
			score += 3
		}
		if len(doc.ISBN) > 0 {
			score++
		}

		if score > bestScore {
			bestScore = score
			bestMatch = doc
		}
	}

	return bestMatch
}

type searchResult struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key             string   `json:"key"`
	Title           string   `json:"title"`
	AuthorName      []string `json:"author_name"`
	ISBN            []string `json:"isbn"`
	CoverI          int      `json:"cover_i"`
	CoverEditionKey string   `json:"cover_edition_key"`
}
