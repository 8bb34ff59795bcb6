package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Storage
		Audit
		Tasks
		Covers
		Log
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
		// MaxPageCount caps the SQLite file size (in pages). 0 means unlimited.
		MaxPageCount int
	}
	Storage struct {
		Backend          string // "current" or "legacy"; build-time default, overridable at runtime
		DualRun          bool   // Compare both backends on load (diagnostics only)
		FailureThreshold int    // Consecutive failures before falling back to legacy (default: 3)
		DualRunSchedule  string // Cron format: "*/15 * * * *" = every 15 minutes
		ExportDir        string // Directory for CLI JSON exports
		FlagsPath        string // Separate SQLite file for runtime flags; derived from Database.Path when empty
	}
	Audit struct {
		RetentionDays int    // Days to keep audit events (default: 30)
		ArchiveDir    string // Where legacy documents are archived before retirement
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		DatabasePath    string
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Covers struct {
		ResolverEnabled bool
		BaseURL         string
		CoversURL       string
		FetchBlobs      bool  // Download resolved covers and store them inline
		MaxBytes        int64 // Largest cover accepted for inline storage
	}
	Log struct {
		Level       string
		Development bool
	}
)

// DefaultBackend is the storage backend used when neither the environment nor a
// persisted setting selects one. Override at build time with
// -ldflags "-X github.com/mrlokans/bookshelf/internal/config.DefaultBackend=legacy".
var DefaultBackend = "current"

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_max_page_count", 0)

	// Storage engine defaults
	v.SetDefault("storage_backend", DefaultBackend)
	v.SetDefault("storage_dual_run", false)
	v.SetDefault("storage_failure_threshold", DefaultFailureThreshold)
	v.SetDefault("storage_dual_run_schedule", "*/15 * * * *")
	v.SetDefault("storage_export_dir", "./exports")
	v.SetDefault("storage_flags_path", "")

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_archive_dir", "./audit")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("tasks_database_path", "")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("covers_resolver_enabled", true)
	v.SetDefault("covers_base_url", "https://openlibrary.org")
	v.SetDefault("covers_covers_url", "https://covers.openlibrary.org")
	v.SetDefault("covers_fetch_blobs", false)
	v.SetDefault("covers_max_bytes", 2<<20)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:         v.GetString("DATABASE_PATH"),
			MaxPageCount: v.GetInt("DATABASE_MAX_PAGE_COUNT"),
		},
		Storage: Storage{
			Backend:          v.GetString("STORAGE_BACKEND"),
			DualRun:          v.GetBool("STORAGE_DUAL_RUN"),
			FailureThreshold: v.GetInt("STORAGE_FAILURE_THRESHOLD"),
			DualRunSchedule:  v.GetString("STORAGE_DUAL_RUN_SCHEDULE"),
			ExportDir:        v.GetString("STORAGE_EXPORT_DIR"),
			FlagsPath:        v.GetString("STORAGE_FLAGS_PATH"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
			ArchiveDir:    v.GetString("AUDIT_ARCHIVE_DIR"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			DatabasePath:    v.GetString("TASKS_DATABASE_PATH"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Covers: Covers{
			ResolverEnabled: v.GetBool("COVERS_RESOLVER_ENABLED"),
			BaseURL:         v.GetString("COVERS_BASE_URL"),
			CoversURL:       v.GetString("COVERS_COVERS_URL"),
			FetchBlobs:      v.GetBool("COVERS_FETCH_BLOBS"),
			MaxBytes:        v.GetInt64("COVERS_MAX_BYTES"),
		},
		Log: Log{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
	}
}

// FlagsDatabasePath returns the flag store file: STORAGE_FLAGS_PATH when set,
// otherwise "<library>-flags<ext>" next to the library database.
func (c *Config) FlagsDatabasePath() string {
	if strings.TrimSpace(c.Storage.FlagsPath) != "" {
		return c.Storage.FlagsPath
	}
	ext := filepath.Ext(c.Database.Path)
	return strings.TrimSuffix(c.Database.Path, ext) + "-flags" + ext
}
