package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/covers"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/current"
	"github.com/mrlokans/bookshelf/internal/database/legacy"
	"github.com/mrlokans/bookshelf/internal/database/meta"
	"github.com/mrlokans/bookshelf/internal/database/settings"
	"github.com/mrlokans/bookshelf/internal/exporters"
	"github.com/mrlokans/bookshelf/internal/flags"
	"github.com/mrlokans/bookshelf/internal/health"
	"github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/migration"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/storage"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// =============================================================================
// Repositories
// =============================================================================

var _ storage.Repository = (*current.Repository)(nil)
var _ storage.Repository = (*legacy.Repository)(nil)

var _ flags.SettingsRepository = (*settings.Repository)(nil)
var _ health.MetaStore = (*meta.Repository)(nil)

// =============================================================================
// Storage Engine
// =============================================================================

var _ flags.Store = (*flags.SettingsStore)(nil)
var _ flags.Store = (*flags.MemoryStore)(nil)

var _ migration.Source = (*legacy.Repository)(nil)
var _ migration.Target = (*current.Repository)(nil)
var _ migration.MarkerStore = (*meta.Repository)(nil)
var _ migration.Archiver = (*audit.Archiver)(nil)
var _ migration.Recorder = (*audit.Service)(nil)

var _ health.FallbackRecorder = (*audit.Service)(nil)

var _ storage.Migrator = (*migration.Coordinator)(nil)
var _ storage.HealthMonitor = (*health.Monitor)(nil)
var _ storage.Notifier = storage.LogNotifier{}

var _ exporters.BookExporter = (*exporters.JSONExporter)(nil)

// =============================================================================
// Outer Surfaces
// =============================================================================

var _ http.Library = (*storage.Library)(nil)
var _ http.Auditor = (*audit.Service)(nil)
var _ http.Pinger = (*database.Database)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)

var _ scheduler.DualReader = (*storage.Library)(nil)
var _ scheduler.DualRunFlag = (*flags.SettingsStore)(nil)
var _ scheduler.Recorder = (*audit.Service)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ tasks.CoverLibrary = (*storage.Library)(nil)
var _ tasks.CoverFetcher = (*covers.Fetcher)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ covers.Resolver = (*covers.OpenLibraryResolver)(nil)
