// Package migration moves books out of the legacy single-table layout into the
// current layout exactly once per store.
//
// The completion marker is written only after the transfer succeeded, so its
// presence is the idempotence guard. The marker is insert-if-absent: if two
// processes race, the first marker wins and is never overwritten.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// MarkerVersion identifies the marker layout and checksum algorithm in use.
const MarkerVersion = 1

var (
	ErrMigrationFailed = errors.New("migration failed")
	// ErrChecksumMismatch means the books read back from the target do not
	// match what was written.
	ErrChecksumMismatch = errors.New("checksum mismatch after transfer")
)

type State string

const (
	StateNotStarted    State = "not_started"
	StateNormalizing   State = "normalizing"
	StateTransferring  State = "transferring"
	StateVerified      State = "verified"
	StateDone          State = "done"
	StateLegacyRetired State = "legacy_retired"
)

type Status string

const (
	StatusAlreadyDone  Status = "already_done"
	StatusNoSourceData Status = "no_source_data"
	StatusMigrated     Status = "migrated"
)

type Result struct {
	State    State  `json:"state"`
	Status   Status `json:"status"`
	Count    int    `json:"count"`
	Checksum string `json:"checksum"`
}

type Source interface {
	LoadRaw(ctx context.Context) ([]entities.LegacyBook, error)
	Retire(ctx context.Context) (int, error)
}

// Target receives the normalized books. Import must store versions and
// updatedAt stamps as given; GetAll is used to verify the transfer.
type Target interface {
	Import(ctx context.Context, books []entities.Book) error
	GetAll(ctx context.Context) ([]entities.Book, error)
}

type MarkerStore interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	SaveIfAbsent(ctx context.Context, key string, v any) (bool, error)
}

// Archiver snapshots the legacy documents before they are retired.
type Archiver interface {
	SaveJSON(prefix string, data any) (string, error)
}

type Recorder interface {
	LogMigration(count int, checksum string, err error)
}

type Option func(*Coordinator)

func WithArchiver(a Archiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

type Coordinator struct {
	source   Source
	target   Target
	markers  MarkerStore
	archiver Archiver
	recorder Recorder
	now      func() time.Time
	logger   *zap.SugaredLogger
}

func NewCoordinator(source Source, target Target, markers MarkerStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:  source,
		target:  target,
		markers: markers,
		now:     time.Now,
		logger:  zap.S().Named("migration"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Marker returns the completion marker if migration has already run.
func (c *Coordinator) Marker(ctx context.Context) (entities.MigrationMarker, bool, error) {
	var marker entities.MigrationMarker
	found, err := c.markers.Load(ctx, entities.MetaKeyMigrationMarker, &marker)
	if err != nil {
		return entities.MigrationMarker{}, false, err
	}
	return marker, found, nil
}

// Run performs the migration if no marker exists yet. A failure leaves the
// legacy store untouched and no marker behind, so the next Run retries.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	marker, found, err := c.Marker(ctx)
	if err != nil {
		return Result{State: StateNotStarted}, fmt.Errorf("%w: read marker: %w", ErrMigrationFailed, err)
	}
	if found {
		return Result{State: StateDone, Status: StatusAlreadyDone, Count: marker.SourceCount, Checksum: marker.Checksum}, nil
	}

	raw, err := c.source.LoadRaw(ctx)
	if err != nil {
		return c.fail(StateNotStarted, fmt.Errorf("read legacy store: %w", err))
	}
	if len(raw) == 0 {
		if _, err := c.writeMarker(ctx, 0, EmptyChecksum); err != nil {
			return c.fail(StateNotStarted, err)
		}
		c.logger.Infow("No legacy data to migrate")
		return Result{State: StateDone, Status: StatusNoSourceData, Checksum: EmptyChecksum}, nil
	}

	books := c.normalize(raw)
	checksum := Checksum(books)
	c.logger.Infow("Legacy data normalized", "count", len(books), "checksum", checksum)

	if err := c.target.Import(ctx, books); err != nil {
		return c.fail(StateTransferring, fmt.Errorf("transfer: %w", err))
	}
	if err := c.verify(ctx, len(books), checksum); err != nil {
		return c.fail(StateTransferring, err)
	}

	written, err := c.writeMarker(ctx, len(books), checksum)
	if err != nil {
		return c.fail(StateVerified, err)
	}
	if !written {
		existing, _, _ := c.Marker(ctx)
		c.logger.Warnw("Migration marker written concurrently, keeping existing marker", "checksum", existing.Checksum)
		return Result{State: StateDone, Status: StatusAlreadyDone, Count: existing.SourceCount, Checksum: existing.Checksum}, nil
	}

	c.logger.Infow("Legacy migration complete", "count", len(books), "checksum", checksum)
	if c.recorder != nil {
		c.recorder.LogMigration(len(books), checksum, nil)
	}

	result := Result{State: StateDone, Status: StatusMigrated, Count: len(books), Checksum: checksum}
	if c.retire(ctx, raw) {
		result.State = StateLegacyRetired
	}
	return result, nil
}

// verify reads the target back and recomputes its checksum.
func (c *Coordinator) verify(ctx context.Context, count int, checksum string) error {
	stored, err := c.target.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if got := Checksum(stored); len(stored) != count || got != checksum {
		return fmt.Errorf("%w: wrote %d books (%s), read %d (%s)", ErrChecksumMismatch, count, checksum, len(stored), got)
	}
	c.logger.Debugw("Transfer verified", "count", count, "checksum", checksum)
	return nil
}

// normalize fills legacy gaps, then orders by (customOrder, addedAt, original
// position) and renumbers densely from zero.
func (c *Coordinator) normalize(raw []entities.LegacyBook) []entities.Book {
	now := c.now().UTC()
	books := make([]entities.Book, len(raw))
	for i, l := range raw {
		books[i] = l.Normalize(i, now)
	}
	sort.SliceStable(books, func(i, j int) bool {
		if *books[i].CustomOrder != *books[j].CustomOrder {
			return *books[i].CustomOrder < *books[j].CustomOrder
		}
		return books[i].AddedAt.Before(books[j].AddedAt)
	})
	for i := range books {
		books[i].CustomOrder = entities.IntPtr(i)
	}
	return books
}

func (c *Coordinator) writeMarker(ctx context.Context, count int, checksum string) (bool, error) {
	marker := entities.MigrationMarker{
		Version:     MarkerVersion,
		CompletedAt: c.now().UTC(),
		SourceCount: count,
		Checksum:    checksum,
	}
	written, err := c.markers.SaveIfAbsent(ctx, entities.MetaKeyMigrationMarker, marker)
	if err != nil {
		return false, fmt.Errorf("write marker: %w", err)
	}
	return written, nil
}

// retire deletes the legacy documents, archiving them first when an archiver is
// configured. Failure is logged only; the marker already stands.
func (c *Coordinator) retire(ctx context.Context, raw []entities.LegacyBook) bool {
	if c.archiver != nil {
		name, err := c.archiver.SaveJSON("legacy-books", raw)
		if err != nil {
			c.logger.Warnw("Skipping legacy retirement, archive failed", "error", err)
			return false
		}
		c.logger.Infow("Legacy documents archived", "file", name)
	}

	removed, err := c.source.Retire(ctx)
	if err != nil {
		c.logger.Warnw("Failed to retire legacy store", "error", err)
		return false
	}
	c.logger.Infow("Legacy store retired", "removed", removed)
	return true
}

func (c *Coordinator) fail(state State, err error) (Result, error) {
	err = fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	c.logger.Errorw("Legacy migration failed", "state", state, "error", err)
	if c.recorder != nil {
		c.recorder.LogMigration(0, "", err)
	}
	return Result{State: state}, err
}
