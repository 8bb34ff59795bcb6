// Package storage is the single persistence API the rest of the application uses.
//
// Every operation runs the same envelope: note the start time, make sure the
// legacy migration has run, delegate to the backend the flag store selects,
// and report the outcome to the health monitor. Failures degrade silently
// (logged, reads return empty) except quota exhaustion, which is returned as
// ErrQuotaExceeded after the Notifier has been told. Input the store refuses
// (ErrInvalidBook, ErrDuplicateID) is returned to the caller and does not
// count against backend health.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/exporters"
	"github.com/mrlokans/bookshelf/internal/flags"
	"github.com/mrlokans/bookshelf/internal/health"
	"github.com/mrlokans/bookshelf/internal/migration"
)

var (
	// ErrQuotaExceeded is the only write failure callers see.
	ErrQuotaExceeded = database.ErrQuotaExceeded

	// ErrUnavailable is returned by operations that must produce a value
	// (AddBook) when the store failed for any reason other than quota.
	ErrUnavailable = errors.New("storage unavailable")

	ErrBookExists = database.ErrBookExists

	// ErrInvalidBook and ErrDuplicateID reject the caller's data.
	ErrInvalidBook = database.ErrInvalidBook
	ErrDuplicateID = database.ErrDuplicateID
)

// QuotaMessage is the user-facing text for quota exhaustion.
const QuotaMessage = "Storage is full. Export your library and remove unused covers to free up space."

// Repository is implemented by both backends.
type Repository interface {
	GetAll(ctx context.Context) ([]entities.Book, error)
	GetByID(ctx context.Context, id string) (entities.Book, bool, error)
	Create(ctx context.Context, book entities.Book) (entities.Book, error)
	Save(ctx context.Context, book entities.Book) (entities.Book, error)
	UpdatePatch(ctx context.Context, id string, patch entities.BookPatch, expectedVersion *int) (entities.PatchResult, error)
	Remove(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, books []entities.Book) error
	Reorder(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

type Migrator interface {
	Run(ctx context.Context) (migration.Result, error)
	Marker(ctx context.Context) (entities.MigrationMarker, bool, error)
}

type HealthMonitor interface {
	MarkSuccess(ctx context.Context, op string, startedAt time.Time)
	MarkFailure(ctx context.Context, op string, err error) bool
	DualReadCheck(ctx context.Context, currentIDs, legacyIDs []string, label string) entities.DualReadResult
	Snapshot(ctx context.Context) health.Snapshot
}

// Notifier surfaces quota exhaustion to the end user.
type Notifier interface {
	NotifyQuotaExceeded(ctx context.Context, op string, err error)
}

// LogNotifier reports quota exhaustion through the log only.
type LogNotifier struct{}

func (LogNotifier) NotifyQuotaExceeded(_ context.Context, op string, err error) {
	zap.S().Named("storage").Errorw(QuotaMessage, "operation", op, "error", err)
}

// Config wires the facade. Current, Legacy, Flags, Monitor and Migrator are required.
type Config struct {
	Current  Repository
	Legacy   Repository
	Flags    flags.Store
	Monitor  HealthMonitor
	Migrator Migrator
	Notifier Notifier
	Exporter *exporters.JSONExporter
	Clock    func() time.Time
}

type MigrationStatus struct {
	Done   bool                      `json:"done"`
	Marker *entities.MigrationMarker `json:"marker,omitempty"`
}

type Library struct {
	current  Repository
	legacy   Repository
	flags    flags.Store
	monitor  HealthMonitor
	migrator Migrator
	notifier Notifier
	exporter *exporters.JSONExporter
	now      func() time.Time
	logger   *zap.SugaredLogger

	migrateMu sync.Mutex
	migrated  bool
}

func NewLibrary(cfg Config) *Library {
	l := &Library{
		current:  cfg.Current,
		legacy:   cfg.Legacy,
		flags:    cfg.Flags,
		monitor:  cfg.Monitor,
		migrator: cfg.Migrator,
		notifier: cfg.Notifier,
		exporter: cfg.Exporter,
		now:      cfg.Clock,
		logger:   zap.S().Named("storage"),
	}
	if l.notifier == nil {
		l.notifier = LogNotifier{}
	}
	if l.exporter == nil {
		l.exporter = exporters.NewJSONExporter()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// LoadLibrary never fails; a broken store yields an empty library.
func (l *Library) LoadLibrary(ctx context.Context) entities.LibraryState {
	repo, backend, started := l.begin(ctx)

	books, err := repo.GetAll(ctx)
	if err != nil {
		l.finish(ctx, "loadLibrary", started, err)
		return entities.LibraryState{Books: []entities.Book{}}
	}
	l.finish(ctx, "loadLibrary", started, nil)

	if backend == flags.BackendCurrent && l.flags.DualRun(ctx) {
		if legacyBooks, err := l.legacy.GetAll(ctx); err != nil {
			l.logger.Warnw("Dual-read of legacy backend failed", "error", err)
		} else {
			l.monitor.DualReadCheck(ctx, ids(books), ids(legacyBooks), "loadLibrary")
		}
	}
	return entities.LibraryState{Books: books}
}

// SaveLibrary replaces the whole library with state.
func (l *Library) SaveLibrary(ctx context.Context, state entities.LibraryState) error {
	repo, backend, started := l.begin(ctx)
	err := repo.ReplaceAll(ctx, state.Books)
	if err == nil {
		l.shadow(ctx, backend, "saveLibrary", func(r Repository) error { return r.ReplaceAll(ctx, state.Books) })
	}
	return l.finish(ctx, "saveLibrary", started, err)
}

func (l *Library) SaveBook(ctx context.Context, book entities.Book) error {
	repo, backend, started := l.begin(ctx)
	_, err := repo.Save(ctx, book)
	if err == nil {
		l.shadow(ctx, backend, "saveBook", func(r Repository) error {
			_, err := r.Save(ctx, book)
			return err
		})
	}
	return l.finish(ctx, "saveBook", started, err)
}

// AddBook creates a new book: a fresh id when none is given, Unread status by
// default, addedAt now and customOrder at the end of the library.
func (l *Library) AddBook(ctx context.Context, book entities.Book) (entities.Book, error) {
	repo, backend, started := l.begin(ctx)

	book = book.Clone()
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.Status == "" {
		book.Status = entities.StatusUnread
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = l.now().UTC()
	}
	if book.Sessions == nil {
		book.Sessions = []entities.ReadingSession{}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return entities.Book{}, l.failValue(ctx, "addBook", started, err)
	}
	book.CustomOrder = entities.IntPtr(count)

	stored, err := repo.Create(ctx, book)
	if errors.Is(err, ErrBookExists) {
		return entities.Book{}, err
	}
	if err != nil {
		return entities.Book{}, l.failValue(ctx, "addBook", started, err)
	}
	l.shadow(ctx, backend, "addBook", func(r Repository) error {
		_, err := r.Save(ctx, stored)
		return err
	})
	l.finish(ctx, "addBook", started, nil)
	return stored, nil
}

// GetBook degrades to "not found" on failure.
func (l *Library) GetBook(ctx context.Context, id string) (entities.Book, bool) {
	repo, _, started := l.begin(ctx)
	book, found, err := repo.GetByID(ctx, id)
	l.finish(ctx, "getBook", started, err)
	if err != nil {
		return entities.Book{}, false
	}
	return book, found
}

// UpdateBookPatch applies a versioned patch. Rejections come back as values;
// a generic store failure is reported as PatchReasonStorageError.
func (l *Library) UpdateBookPatch(ctx context.Context, id string, patch entities.BookPatch, expectedVersion *int) (entities.PatchResult, error) {
	repo, backend, started := l.begin(ctx)
	result, err := repo.UpdatePatch(ctx, id, patch, expectedVersion)
	if err != nil {
		return entities.PatchRejected(entities.PatchReasonStorageError), l.finish(ctx, "updateBookPatch", started, err)
	}
	if result.OK {
		l.shadow(ctx, backend, "updateBookPatch", func(r Repository) error {
			_, err := r.UpdatePatch(ctx, id, patch, nil)
			return err
		})
	}
	l.finish(ctx, "updateBookPatch", started, nil)
	return result, nil
}

func (l *Library) RemoveBook(ctx context.Context, id string) error {
	repo, backend, started := l.begin(ctx)
	err := repo.Remove(ctx, id)
	if err == nil {
		l.shadow(ctx, backend, "removeBook", func(r Repository) error { return r.Remove(ctx, id) })
	}
	return l.finish(ctx, "removeBook", started, err)
}

func (l *Library) SaveReorder(ctx context.Context, idsInOrder []string) error {
	repo, backend, started := l.begin(ctx)
	err := repo.Reorder(ctx, idsInOrder)
	if err == nil {
		l.shadow(ctx, backend, "saveReorder", func(r Repository) error { return r.Reorder(ctx, idsInOrder) })
	}
	return l.finish(ctx, "saveReorder", started, err)
}

// ExportLibraryToJSON writes every book, covers inlined, to w. Only write
// errors on w are returned.
func (l *Library) ExportLibraryToJSON(ctx context.Context, w io.Writer) (exporters.ExportResult, error) {
	state := l.LoadLibrary(ctx)
	result, err := l.exporter.Export(w, state.Books)
	if err != nil {
		l.logger.Errorw("Export failed", "error", err)
		return exporters.ExportResult{}, err
	}
	l.logger.Infow("Library exported", "books", result.BooksProcessed, "covers", result.CoversInlined)
	return result, nil
}

// ExportLibraryToFile writes the export to path, or to a timestamped file
// inside path when it is a directory. It returns the file written.
func (l *Library) ExportLibraryToFile(ctx context.Context, path string) (string, exporters.ExportResult, error) {
	state := l.LoadLibrary(ctx)
	written, result, err := l.exporter.ExportToFile(path, state.Books)
	if err != nil {
		l.logger.Errorw("Export failed", "path", path, "error", err)
		return "", exporters.ExportResult{}, err
	}
	l.logger.Infow("Library exported", "path", written, "books", result.BooksProcessed, "covers", result.CoversInlined)
	return written, result, nil
}

// ExportFileName is the suggested attachment name for an export taken now.
func (l *Library) ExportFileName() string {
	return l.exporter.FileName()
}

// VerifyDualRead compares both backends regardless of the dual-run flag.
func (l *Library) VerifyDualRead(ctx context.Context, label string) (entities.DualReadResult, error) {
	currentBooks, err := l.current.GetAll(ctx)
	if err != nil {
		return entities.DualReadResult{}, fmt.Errorf("read current backend: %w", err)
	}
	legacyBooks, err := l.legacy.GetAll(ctx)
	if err != nil {
		return entities.DualReadResult{}, fmt.Errorf("read legacy backend: %w", err)
	}
	return l.monitor.DualReadCheck(ctx, ids(currentBooks), ids(legacyBooks), label), nil
}

func (l *Library) HealthSnapshot(ctx context.Context) health.Snapshot {
	return l.monitor.Snapshot(ctx)
}

func (l *Library) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	marker, found, err := l.migrator.Marker(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}
	if !found {
		return MigrationStatus{}, nil
	}
	return MigrationStatus{Done: true, Marker: &marker}, nil
}

// Migrate runs the migration now, independent of the active backend.
func (l *Library) Migrate(ctx context.Context) (migration.Result, error) {
	l.migrateMu.Lock()
	defer l.migrateMu.Unlock()
	return l.runMigration(ctx)
}

// begin runs the envelope prologue and picks the repository for this call.
func (l *Library) begin(ctx context.Context) (Repository, flags.Backend, time.Time) {
	started := l.now()
	backend := l.flags.Backend(ctx)
	// The legacy backend reads legacy documents directly; migrating under it
	// would retire the data it is serving.
	if backend == flags.BackendCurrent {
		l.ensureMigrated(ctx)
		backend = l.flags.Backend(ctx)
	}
	if backend == flags.BackendLegacy {
		return l.legacy, backend, started
	}
	return l.current, backend, started
}

func (l *Library) ensureMigrated(ctx context.Context) {
	l.migrateMu.Lock()
	defer l.migrateMu.Unlock()
	if l.migrated {
		return
	}
	// Failures are reported inside runMigration; the next call retries.
	_, _ = l.runMigration(ctx)
}

// runMigration must be called with migrateMu held.
func (l *Library) runMigration(ctx context.Context) (migration.Result, error) {
	started := l.now()
	result, err := l.migrator.Run(ctx)
	if err != nil {
		l.monitor.MarkFailure(ctx, "migrate", err)
		if errors.Is(err, ErrQuotaExceeded) {
			l.notifier.NotifyQuotaExceeded(ctx, "migrate", err)
		}
		return result, err
	}
	l.migrated = true
	if result.Status != migration.StatusAlreadyDone {
		l.monitor.MarkSuccess(ctx, "migrate", started)
	}
	return result, nil
}

// finish reports the outcome and maps it onto the facade error contract.
func (l *Library) finish(ctx context.Context, op string, started time.Time, err error) error {
	if err == nil {
		l.monitor.MarkSuccess(ctx, op, started)
		return nil
	}
	if database.IsInputError(err) {
		l.logger.Warnw("Rejected invalid input", "operation", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	l.monitor.MarkFailure(ctx, op, err)
	if errors.Is(err, ErrQuotaExceeded) {
		l.notifier.NotifyQuotaExceeded(ctx, op, err)
		return fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
	}
	l.logger.Errorw("Storage operation failed", "operation", op, "error", err)
	return nil
}

func (l *Library) failValue(ctx context.Context, op string, started time.Time, err error) error {
	if reported := l.finish(ctx, op, started, err); reported != nil {
		return reported
	}
	return fmt.Errorf("%s: %w", op, ErrUnavailable)
}

// shadow mirrors a successful write onto the legacy backend while dual-run is
// on, so dual reads compare like with like. Its failures are logged only.
func (l *Library) shadow(ctx context.Context, backend flags.Backend, op string, write func(Repository) error) {
	if backend != flags.BackendCurrent || !l.flags.DualRun(ctx) {
		return
	}
	if err := write(l.legacy); err != nil {
		l.logger.Warnw("Dual-run shadow write failed", "operation", op, "error", err)
	}
}

func ids(books []entities.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}
