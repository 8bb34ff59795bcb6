package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/covers"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// ErrCoverConflict means the book changed while its cover was being resolved.
// The task is retried and re-reads the book.
var ErrCoverConflict = errors.New("book changed during cover resolution")

// CoverLibrary is the slice of the storage facade the cover tasks use.
type CoverLibrary interface {
	GetBook(ctx context.Context, id string) (entities.Book, bool)
	LoadLibrary(ctx context.Context) entities.LibraryState
	UpdateBookPatch(ctx context.Context, id string, patch entities.BookPatch, expectedVersion *int) (entities.PatchResult, error)
}

// CoverFetcher downloads a resolved cover so it is stored as a blob.
type CoverFetcher interface {
	Fetch(ctx context.Context, url string) (entities.CoverRef, error)
}

// CoverDeps bundles what the cover processors need. Fetcher is optional;
// without it the resolved URL is stored as is.
type CoverDeps struct {
	Library  CoverLibrary
	Resolver covers.Resolver
	Fetcher  CoverFetcher
}

// ResolveCoverTask looks up a cover for a single book that has none.
type ResolveCoverTask struct {
	BookID string `json:"book_id"`
}

// Config returns the queue configuration for cover resolution tasks.
func (t ResolveCoverTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "resolve_cover",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ResolveCoverProcessor creates a processor function for ResolveCoverTask.
func ResolveCoverProcessor(deps CoverDeps) backlite.QueueProcessor[ResolveCoverTask] {
	return func(ctx context.Context, task ResolveCoverTask) error {
		if deps.Library == nil || deps.Resolver == nil {
			return fmt.Errorf("cover resolver not configured")
		}

		book, found := deps.Library.GetBook(ctx, task.BookID)
		if !found {
			zap.S().Named("tasks").Infow("Skipping cover resolution, book not found", "book_id", task.BookID)
			return nil
		}

		updated, err := resolveCover(ctx, deps, book)
		if err != nil {
			return fmt.Errorf("resolve cover for %s: %w", task.BookID, err)
		}
		zap.S().Named("tasks").Infow("Cover resolution finished", "book_id", task.BookID, "title", book.Title, "updated", updated)
		return nil
	}
}

// NewResolveCoverQueue creates a backlite queue for cover resolution tasks.
func NewResolveCoverQueue(deps CoverDeps) backlite.Queue {
	return backlite.NewQueue(ResolveCoverProcessor(deps))
}

// resolveCover patches book with a resolved cover. Books that already have a
// cover are left alone. It reports whether the book was updated.
func resolveCover(ctx context.Context, deps CoverDeps, book entities.Book) (bool, error) {
	if !book.Cover.Normalize().IsNone() {
		return false, nil
	}

	url, err := deps.Resolver.Resolve(ctx, book.Title, book.Author)
	if err != nil {
		return false, err
	}
	if url == "" {
		return false, nil
	}

	cover := entities.URLCover(url)
	if deps.Fetcher != nil {
		blob, err := deps.Fetcher.Fetch(ctx, url)
		if err != nil {
			zap.S().Named("tasks").Warnw("Cover download failed, keeping URL", "book_id", book.ID, "url", url, "error", err)
		} else {
			cover = blob
		}
	}

	result, err := deps.Library.UpdateBookPatch(ctx, book.ID, entities.BookPatch{Cover: &cover}, &book.Version)
	if err != nil {
		return false, err
	}
	switch {
	case result.OK:
		return true, nil
	case result.Reason == entities.PatchReasonVersionConflict:
		return false, ErrCoverConflict
	case result.Reason == entities.PatchReasonNotFound:
		return false, nil
	}
	return false, fmt.Errorf("patch rejected: %s", result.Reason)
}
