// Package current stores books in the normalized layout: one metadata row per
// book and a separate cover row, so cover payloads never inflate metadata scans.
//
// Every operation runs in a single transaction; reads join both tables inside
// that transaction so a book is never returned without its cover half.
//
// # Usage
//
//	repo := current.NewRepository(db)
//	books, err := repo.GetAll(ctx)
package current

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// SQLite caps bound parameters per statement; bulk deletes are chunked below it.
const deleteChunkSize = 500

// Repository handles all normalized book storage operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new current-layout repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// SetClock replaces the time source used for UpdatedAt stamps.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// GetAll reads every book joined with its cover. When any book carries a custom
// order the result is sorted by (custom order, added at); otherwise rows come back
// in store order.
func (r *Repository) GetAll(ctx context.Context) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		books, err = loadAll(tx)
		return err
	})
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return books, nil
}

// GetByID returns the book with the given id. The boolean is false when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (entities.Book, bool, error) {
	var (
		book  entities.Book
		found bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		book, found, err = loadBook(tx, id)
		return err
	})
	if err != nil {
		return entities.Book{}, false, database.ClassifyError(err)
	}
	return book, found, nil
}

// Create stores a new book at version 1. It fails with ErrBookExists if the id is taken.
func (r *Repository) Create(ctx context.Context, book entities.Book) (entities.Book, error) {
	if book.ID == "" {
		return entities.Book{}, fmt.Errorf("%w: missing id", database.ErrInvalidBook)
	}
	var stored entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, exists, err := storedVersion(tx, book.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", database.ErrBookExists, book.ID)
		}
		stored = r.stamp(book, version+1)
		return putBook(tx, stored)
	})
	if err != nil {
		if errors.Is(err, database.ErrBookExists) {
			return entities.Book{}, err
		}
		return entities.Book{}, database.ClassifyError(err)
	}
	return stored, nil
}

// Save upserts a book. The stored version becomes the previous stored version
// plus one (1 for a new book); the caller's version is ignored.
func (r *Repository) Save(ctx context.Context, book entities.Book) (entities.Book, error) {
	if book.ID == "" {
		return entities.Book{}, fmt.Errorf("%w: missing id", database.ErrInvalidBook)
	}
	var stored entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, _, err := storedVersion(tx, book.ID)
		if err != nil {
			return err
		}
		stored = r.stamp(book, version+1)
		return putBook(tx, stored)
	})
	if err != nil {
		return entities.Book{}, database.ClassifyError(err)
	}
	return stored, nil
}

// UpdatePatch merges patch into the stored book if expectedVersion (when given)
// matches. Nothing is written on any rejection path.
func (r *Repository) UpdatePatch(ctx context.Context, id string, patch entities.BookPatch, expectedVersion *int) (entities.PatchResult, error) {
	if err := patch.Validate(); err != nil {
		return entities.PatchRejected(entities.PatchReasonInvalid), nil
	}

	var result entities.PatchResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, found, err := loadBook(tx, id)
		if err != nil {
			return err
		}
		if !found {
			result = entities.PatchRejected(entities.PatchReasonNotFound)
			return nil
		}
		if expectedVersion != nil && *expectedVersion != book.Version {
			result = entities.PatchRejected(entities.PatchReasonVersionConflict)
			return nil
		}

		patch.ApplyTo(&book)
		book = r.stamp(book, book.Version+1)
		if err := putBook(tx, book); err != nil {
			return err
		}
		result = entities.PatchApplied(book.Version)
		return nil
	})
	if err != nil {
		return entities.PatchResult{}, database.ClassifyError(err)
	}
	return result, nil
}

// Remove deletes the metadata and cover rows of a book. Removing an unknown id is a no-op.
func (r *Repository) Remove(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteBooks(tx, []string{id})
	})
	return database.ClassifyError(err)
}

// ReplaceAll makes the stored set equal to books: ids missing from the input are
// deleted and every given book is upserted with its custom order forced to its
// input position. A book whose content differs from the stored copy gets the
// stored version plus one; an unchanged book keeps its version and updatedAt
// and is not rewritten. New books start at version 1. The caller's version is
// never used.
func (r *Repository) ReplaceAll(ctx context.Context, books []entities.Book) error {
	return r.replace(ctx, books, false)
}

// Import is the migration write: like ReplaceAll, but the given versions (at
// least 1) and updatedAt stamps are stored as they are.
func (r *Repository) Import(ctx context.Context, books []entities.Book) error {
	return r.replace(ctx, books, true)
}

func (r *Repository) replace(ctx context.Context, books []entities.Book, keepStamps bool) error {
	if err := database.ValidateBatch(books); err != nil {
		return err
	}

	now := r.now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := loadAll(tx)
		if err != nil {
			return err
		}

		keep := make(map[string]struct{}, len(books))
		for _, b := range books {
			keep[b.ID] = struct{}{}
		}
		stored := make(map[string]entities.Book, len(existing))
		var removed []string
		for _, b := range existing {
			stored[b.ID] = b
			if _, ok := keep[b.ID]; !ok {
				removed = append(removed, b.ID)
			}
		}
		if err := deleteBooks(tx, removed); err != nil {
			return err
		}

		for i, b := range books {
			b = b.Clone()
			b.CustomOrder = entities.IntPtr(i)
			prev, exists := stored[b.ID]
			switch {
			case keepStamps:
				b.Version = max(b.Version, 1)
			case !exists:
				b.Version = 1
			case prev.SameContent(b):
				continue
			default:
				b.Version = prev.Version + 1
				b.UpdatedAt = now
			}
			if b.UpdatedAt.IsZero() {
				b.UpdatedAt = now
			}
			if err := putBook(tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	return database.ClassifyError(err)
}

// Reorder assigns custom order 0..n-1 to the known ids in the order given,
// one record per transaction. Unknown and repeated ids are skipped without
// taking a position. Each touched record gets a version bump. A failure part
// way leaves earlier records reordered; order is advisory.
func (r *Repository) Reorder(ctx context.Context, ids []string) error {
	position := 0
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		applied := false
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			version, exists, err := storedVersion(tx, id)
			if err != nil || !exists {
				return err
			}
			applied = true
			return tx.Model(&entities.BookRecord{}).Where("id = ?", id).Updates(map[string]any{
				"custom_order": position,
				"version":      version + 1,
				"updated_at":   r.now().UTC(),
			}).Error
		})
		if err != nil {
			return database.ClassifyError(fmt.Errorf("reorder %s: %w", id, err))
		}
		if applied {
			position++
		}
	}
	return nil
}

// Count returns the number of stored books.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.BookRecord{}).Count(&n).Error; err != nil {
		return 0, database.ClassifyError(err)
	}
	return int(n), nil
}

func (r *Repository) stamp(book entities.Book, version int) entities.Book {
	book = book.Clone()
	book.Version = version
	book.UpdatedAt = r.now().UTC()
	return book
}

func storedVersion(tx *gorm.DB, id string) (int, bool, error) {
	var rec entities.BookRecord
	err := tx.Select("id", "version").Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.Version, true, nil
}

func loadAll(tx *gorm.DB) ([]entities.Book, error) {
	var records []entities.BookRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	var covers []entities.CoverRecord
	if err := tx.Find(&covers).Error; err != nil {
		return nil, err
	}

	coverByID := make(map[string]*entities.CoverRecord, len(covers))
	for i := range covers {
		coverByID[covers[i].BookID] = &covers[i]
	}

	books := make([]entities.Book, 0, len(records))
	ordered := false
	for _, rec := range records {
		books = append(books, entities.JoinBook(rec, coverByID[rec.ID]))
		if rec.CustomOrder != nil {
			ordered = true
		}
	}
	if ordered {
		entities.SortByCustomOrder(books)
	}
	return books, nil
}

func loadBook(tx *gorm.DB, id string) (entities.Book, bool, error) {
	var rec entities.BookRecord
	err := tx.Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Book{}, false, nil
	}
	if err != nil {
		return entities.Book{}, false, err
	}

	var cover entities.CoverRecord
	err = tx.Where("book_id = ?", id).Take(&cover).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return entities.JoinBook(rec, nil), true, nil
	case err != nil:
		return entities.Book{}, false, err
	}
	return entities.JoinBook(rec, &cover), true, nil
}

// putBook upserts the metadata row and either upserts or deletes the cover row.
func putBook(tx *gorm.DB, book entities.Book) error {
	record, cover := entities.SplitBook(book)
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error; err != nil {
		return err
	}
	if cover == nil {
		return tx.Where("book_id = ?", book.ID).Delete(&entities.CoverRecord{}).Error
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(cover).Error
}

func deleteBooks(tx *gorm.DB, ids []string) error {
	for start := 0; start < len(ids); start += deleteChunkSize {
		chunk := ids[start:min(start+deleteChunkSize, len(ids))]
		if err := tx.Where("book_id IN ?", chunk).Delete(&entities.CoverRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", chunk).Delete(&entities.BookRecord{}).Error; err != nil {
			return err
		}
	}
	return nil
}
