package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// ResolveMissingCoversTask resolves covers for every book that has none.
// Books are processed sequentially; the resolver is rate limited anyway.
type ResolveMissingCoversTask struct{}

// Config returns the queue configuration for bulk cover resolution.
func (t ResolveMissingCoversTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "resolve_missing_covers",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     60 * time.Minute, // Allow time to process all books
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

type ResolveMissingCoversResult struct {
	Total    int
	Updated  int
	Skipped  int
	Failed   int
	Canceled bool
}

// ResolveMissingCovers walks the library once. Per-book failures are counted,
// not returned.
func ResolveMissingCovers(ctx context.Context, deps CoverDeps) ResolveMissingCoversResult {
	logger := zap.S().Named("tasks")
	var result ResolveMissingCoversResult

	for _, book := range deps.Library.LoadLibrary(ctx).Books {
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
		result.Total++

		updated, err := resolveCover(ctx, deps, book)
		switch {
		case err != nil:
			result.Failed++
			logger.Warnw("Cover resolution failed", "book_id", book.ID, "error", err)
		case updated:
			result.Updated++
		default:
			result.Skipped++
		}
	}
	return result
}

// ResolveMissingCoversProcessor creates a processor function for ResolveMissingCoversTask.
func ResolveMissingCoversProcessor(deps CoverDeps) backlite.QueueProcessor[ResolveMissingCoversTask] {
	return func(ctx context.Context, task ResolveMissingCoversTask) error {
		if deps.Library == nil || deps.Resolver == nil {
			return fmt.Errorf("cover resolver not configured")
		}

		result := ResolveMissingCovers(ctx, deps)
		zap.S().Named("tasks").Infow("Cover resolution complete",
			"total", result.Total, "updated", result.Updated, "skipped", result.Skipped, "failed", result.Failed)
		if result.Canceled {
			return ctx.Err()
		}
		return nil
	}
}

// NewResolveMissingCoversQueue creates a backlite queue for bulk cover resolution.
func NewResolveMissingCoversQueue(deps CoverDeps) backlite.Queue {
	return backlite.NewQueue(ResolveMissingCoversProcessor(deps))
}
