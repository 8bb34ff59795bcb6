package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T, opts ...Option) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath, append([]Option{WithLogLevel(logger.Silent)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase(t *testing.T) {
	db := setupTestDB(t)

	t.Run("creates all tables", func(t *testing.T) {
		for _, table := range []string{"book_metadata", "book_covers", "legacy_books", "storage_meta", "audit_events"} {
			assert.True(t, db.DB.Migrator().HasTable(table), "table %s should exist", table)
		}
		assert.False(t, db.DB.Migrator().HasTable("settings"), "flags live in their own file")
	})

	t.Run("creates metadata indexes", func(t *testing.T) {
		for _, index := range []string{"idx_status_order", "idx_book_metadata_status", "idx_book_metadata_custom_order", "idx_book_metadata_publisher", "idx_book_metadata_genre"} {
			assert.True(t, db.DB.Migrator().HasIndex(&entities.BookRecord{}, index), "index %s should exist", index)
		}
	})

	t.Run("ping succeeds", func(t *testing.T) {
		assert.NoError(t, db.Ping(context.Background()))
	})
}

func TestNewFlagsDatabase(t *testing.T) {
	db, err := NewFlagsDatabase(filepath.Join(t.TempDir(), "flags.db"), WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.True(t, db.DB.Migrator().HasTable("settings"))
	assert.False(t, db.DB.Migrator().HasTable("book_metadata"))
}

func TestDatabase_PingAfterClose(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())

	assert.Error(t, db.Ping(context.Background()))
}

func TestClassifyError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, ClassifyError(nil))
	})

	t.Run("sqlite full is quota exceeded", func(t *testing.T) {
		err := ClassifyError(sqlite3.Error{Code: sqlite3.ErrFull})
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.NotErrorIs(t, err, ErrTransactionFailure)
	})

	t.Run("message match is quota exceeded", func(t *testing.T) {
		err := ClassifyError(errors.New("database or disk is full"))
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("other errors are transaction failures", func(t *testing.T) {
		err := ClassifyError(errors.New("database is locked"))
		assert.ErrorIs(t, err, ErrTransactionFailure)
		assert.Contains(t, err.Error(), "database is locked")
	})

	t.Run("classified errors pass through", func(t *testing.T) {
		err := ClassifyError(ErrQuotaExceeded)
		assert.Equal(t, ErrQuotaExceeded, err)
	})

	t.Run("input errors pass through", func(t *testing.T) {
		err := ClassifyError(ErrDuplicateID)
		assert.Equal(t, ErrDuplicateID, err)
		assert.NotErrorIs(t, err, ErrTransactionFailure)
	})
}

func TestValidateBatch(t *testing.T) {
	assert.NoError(t, ValidateBatch(nil))
	assert.NoError(t, ValidateBatch([]entities.Book{{ID: "a"}, {ID: "b"}}))

	err := ValidateBatch([]entities.Book{{ID: "a"}, {Title: "no id"}})
	assert.ErrorIs(t, err, ErrInvalidBook)
	assert.Contains(t, err.Error(), "book 1")

	err = ValidateBatch([]entities.Book{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.True(t, IsInputError(err))
	assert.False(t, IsInputError(ErrQuotaExceeded))
}

func TestMaxPageCount_WritesBeyondCapAreQuotaErrors(t *testing.T) {
	// A cap of one page is raised by SQLite to the current file size, so any
	// growth of the file fails.
	db := setupTestDB(t, WithMaxPageCount(1))

	err := db.DB.Create(&entities.CoverRecord{BookID: "big", Blob: make([]byte, 256*1024)}).Error
	require.Error(t, err)
	assert.ErrorIs(t, ClassifyError(err), ErrQuotaExceeded)
}
