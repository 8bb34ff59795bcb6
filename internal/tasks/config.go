package tasks

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mrlokans/bookshelf/internal/config"
)

// Config tunes the backlite client. Per-task retries and timeouts live on
// each task type's QueueConfig.
type Config struct {
	Workers         int
	ReleaseAfter    time.Duration // stuck tasks go back to the queue after this
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

// ConfigFrom converts application settings. Zero values keep the defaults.
func ConfigFrom(settings config.Tasks) Config {
	cfg := DefaultConfig()
	if settings.Workers > 0 {
		cfg.Workers = settings.Workers
	}
	if settings.ReleaseAfter > 0 {
		cfg.ReleaseAfter = settings.ReleaseAfter
	}
	if settings.CleanupInterval > 0 {
		cfg.CleanupInterval = settings.CleanupInterval
	}
	return cfg
}

// QueuePath returns the queue database location: override when set, otherwise
// the library database path with a "-tasks" suffix before the extension.
func QueuePath(libraryPath, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	ext := filepath.Ext(libraryPath)
	return strings.TrimSuffix(libraryPath, ext) + "-tasks" + ext
}
