package http

import (
	"context"
	"io"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/exporters"
	"github.com/mrlokans/bookshelf/internal/flags"
	"github.com/mrlokans/bookshelf/internal/health"
	"github.com/mrlokans/bookshelf/internal/migration"
	"github.com/mrlokans/bookshelf/internal/storage"
)

// Library is the storage facade as seen by the handlers.
type Library interface {
	LoadLibrary(ctx context.Context) entities.LibraryState
	SaveLibrary(ctx context.Context, state entities.LibraryState) error
	SaveBook(ctx context.Context, book entities.Book) error
	AddBook(ctx context.Context, book entities.Book) (entities.Book, error)
	GetBook(ctx context.Context, id string) (entities.Book, bool)
	UpdateBookPatch(ctx context.Context, id string, patch entities.BookPatch, expectedVersion *int) (entities.PatchResult, error)
	RemoveBook(ctx context.Context, id string) error
	SaveReorder(ctx context.Context, idsInOrder []string) error
	ExportLibraryToJSON(ctx context.Context, w io.Writer) (exporters.ExportResult, error)
	ExportFileName() string
	VerifyDualRead(ctx context.Context, label string) (entities.DualReadResult, error)
	HealthSnapshot(ctx context.Context) health.Snapshot
	MigrationStatus(ctx context.Context) (storage.MigrationStatus, error)
	Migrate(ctx context.Context) (migration.Result, error)
}

// Auditor records user-triggered changes. Optional.
type Auditor interface {
	LogSettings(action, description string)
	LogExport(count int, destination string, err error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TaskQueue enqueues background work and reports its status.
type TaskQueue interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Library Library
	Flags   flags.Store
	Auditor Auditor
	Pinger  Pinger

	// Task queue client (optional)
	TaskQueue TaskQueue

	// Enqueue a cover lookup for every added book without a cover
	ResolveCovers bool

	// Application info
	Version string
}
