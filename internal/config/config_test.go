package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8190), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 0, cfg.Database.MaxPageCount)
	assert.Equal(t, "current", cfg.Storage.Backend)
	assert.False(t, cfg.Storage.DualRun)
	assert.Equal(t, DefaultFailureThreshold, cfg.Storage.FailureThreshold)
	assert.Equal(t, "*/15 * * * *", cfg.Storage.DualRunSchedule)
	assert.Equal(t, 2, cfg.Tasks.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Tasks.ReleaseAfter)
	assert.Empty(t, cfg.Tasks.DatabasePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://covers.openlibrary.org", cfg.Covers.CoversURL)
	assert.False(t, cfg.Covers.FetchBlobs)
	assert.Equal(t, int64(2<<20), cfg.Covers.MaxBytes)
	assert.Equal(t, "./audit", cfg.Audit.ArchiveDir)
	assert.Equal(t, "./bookshelf-flags.db", cfg.FlagsDatabasePath())
}

func TestNewConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "legacy")
	t.Setenv("STORAGE_DUAL_RUN", "true")
	t.Setenv("STORAGE_FAILURE_THRESHOLD", "5")
	t.Setenv("DATABASE_PATH", "/tmp/library.db")
	t.Setenv("DATABASE_MAX_PAGE_COUNT", "4096")
	t.Setenv("TASK_RELEASE_AFTER", "30s")
	t.Setenv("COVERS_FETCH_BLOBS", "true")

	cfg := NewConfig()

	assert.Equal(t, "legacy", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.DualRun)
	assert.Equal(t, 5, cfg.Storage.FailureThreshold)
	assert.Equal(t, "/tmp/library.db", cfg.Database.Path)
	assert.Equal(t, 4096, cfg.Database.MaxPageCount)
	assert.Equal(t, 30*time.Second, cfg.Tasks.ReleaseAfter)
	assert.True(t, cfg.Covers.FetchBlobs)
}

func TestConfig_FlagsDatabasePath(t *testing.T) {
	cfg := &Config{Database: Database{Path: "/data/library.db"}}
	assert.Equal(t, "/data/library-flags.db", cfg.FlagsDatabasePath())

	cfg.Storage.FlagsPath = "/srv/flags.db"
	assert.Equal(t, "/srv/flags.db", cfg.FlagsDatabasePath())
}
