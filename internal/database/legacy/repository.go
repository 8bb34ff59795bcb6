// Package legacy stores each book as a single JSON document with its cover
// inlined as a data URI. It is the pre-normalization layout, kept as the
// migration source and as the fallback backend.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/entities"
)

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// SetClock replaces the time source used for UpdatedAt stamps and normalization.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// LoadRaw returns the stored documents in insertion order without normalizing them.
func (r *Repository) LoadRaw(ctx context.Context) ([]entities.LegacyBook, error) {
	var records []entities.LegacyRecord
	if err := r.db.WithContext(ctx).Order("rowid").Find(&records).Error; err != nil {
		return nil, database.ClassifyError(err)
	}

	books := make([]entities.LegacyBook, 0, len(records))
	for _, rec := range records {
		book, err := decode(rec)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// SaveRaw appends documents as they are, replacing any with the same id.
// It exists for seeding stores written by older releases.
func (r *Repository) SaveRaw(ctx context.Context, books []entities.LegacyBook) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range books {
			if err := putDocument(tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	return database.ClassifyError(err)
}

func (r *Repository) GetAll(ctx context.Context) ([]entities.Book, error) {
	raw, err := r.LoadRaw(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	books := make([]entities.Book, 0, len(raw))
	for i, l := range raw {
		books = append(books, l.Normalize(i, now))
	}
	entities.SortByCustomOrder(books)
	return books, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (entities.Book, bool, error) {
	var (
		book  entities.Book
		found bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		book, found, err = r.load(tx, id)
		return err
	})
	if err != nil {
		return entities.Book{}, false, database.ClassifyError(err)
	}
	return book, found, nil
}

func (r *Repository) Create(ctx context.Context, book entities.Book) (entities.Book, error) {
	if book.ID == "" {
		return entities.Book{}, fmt.Errorf("%w: missing id", database.ErrInvalidBook)
	}
	var stored entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, exists, err := r.load(tx, book.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", database.ErrBookExists, book.ID)
		}
		stored = r.stamp(book, 1)
		return putDocument(tx, entities.NewLegacyBook(stored))
	})
	if err != nil {
		if errors.Is(err, database.ErrBookExists) {
			return entities.Book{}, err
		}
		return entities.Book{}, database.ClassifyError(err)
	}
	return stored, nil
}

func (r *Repository) Save(ctx context.Context, book entities.Book) (entities.Book, error) {
	if book.ID == "" {
		return entities.Book{}, fmt.Errorf("%w: missing id", database.ErrInvalidBook)
	}
	var stored entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, exists, err := r.load(tx, book.ID)
		if err != nil {
			return err
		}
		version := 1
		if exists {
			version = existing.Version + 1
		}
		stored = r.stamp(book, version)
		return putDocument(tx, entities.NewLegacyBook(stored))
	})
	if err != nil {
		return entities.Book{}, database.ClassifyError(err)
	}
	return stored, nil
}

func (r *Repository) UpdatePatch(ctx context.Context, id string, patch entities.BookPatch, expectedVersion *int) (entities.PatchResult, error) {
	if err := patch.Validate(); err != nil {
		return entities.PatchRejected(entities.PatchReasonInvalid), nil
	}

	var result entities.PatchResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, found, err := r.load(tx, id)
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
		if err := putDocument(tx, entities.NewLegacyBook(book)); err != nil {
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

func (r *Repository) Remove(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.LegacyRecord{}).Error
	return database.ClassifyError(err)
}

// ReplaceAll rewrites the whole store in input order. A book whose content
// differs from the stored document gets the stored version plus one, an
// unchanged book keeps its version and updatedAt, and a new book starts at 1.
func (r *Repository) ReplaceAll(ctx context.Context, books []entities.Book) error {
	if err := database.ValidateBatch(books); err != nil {
		return err
	}

	now := r.now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []entities.LegacyRecord
		if err := tx.Order("rowid").Find(&existing).Error; err != nil {
			return err
		}
		stored := make(map[string]entities.Book, len(existing))
		for i, rec := range existing {
			doc, err := decode(rec)
			if err != nil {
				return err
			}
			stored[doc.ID] = doc.Normalize(i, now)
		}

		if err := tx.Where("1 = 1").Delete(&entities.LegacyRecord{}).Error; err != nil {
			return err
		}
		for i, b := range books {
			b = b.Clone()
			b.CustomOrder = entities.IntPtr(i)
			prev, exists := stored[b.ID]
			switch {
			case !exists:
				b.Version = 1
				if b.UpdatedAt.IsZero() {
					b.UpdatedAt = now
				}
			case prev.SameContent(b):
				b.Version = prev.Version
				b.UpdatedAt = prev.UpdatedAt
			default:
				b.Version = prev.Version + 1
				b.UpdatedAt = now
			}
			if err := putDocument(tx, entities.NewLegacyBook(b)); err != nil {
				return err
			}
		}
		return nil
	})
	return database.ClassifyError(err)
}

// Reorder assigns custom order 0..n-1 to the known ids in the order given,
// one record per transaction. Unknown and repeated ids take no position.
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
			book, found, err := r.load(tx, id)
			if err != nil || !found {
				return err
			}
			applied = true
			book.CustomOrder = entities.IntPtr(position)
			book = r.stamp(book, book.Version+1)
			return putDocument(tx, entities.NewLegacyBook(book))
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

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.LegacyRecord{}).Count(&n).Error; err != nil {
		return 0, database.ClassifyError(err)
	}
	return int(n), nil
}

// Retire deletes every legacy document. It runs once migration has completed.
func (r *Repository) Retire(ctx context.Context) (int, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&entities.LegacyRecord{})
	if result.Error != nil {
		return 0, database.ClassifyError(result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) stamp(book entities.Book, version int) entities.Book {
	book = book.Clone()
	book.Version = version
	book.UpdatedAt = r.now().UTC()
	return book
}

// load normalizes a single document; its position is the number of documents
// stored before it.
func (r *Repository) load(tx *gorm.DB, id string) (entities.Book, bool, error) {
	var rec entities.LegacyRecord
	err := tx.Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Book{}, false, nil
	}
	if err != nil {
		return entities.Book{}, false, err
	}
	doc, err := decode(rec)
	if err != nil {
		return entities.Book{}, false, err
	}

	position := 0
	if doc.CustomOrder == nil {
		var before int64
		if err := tx.Model(&entities.LegacyRecord{}).
			Where("rowid < (SELECT rowid FROM legacy_books WHERE id = ?)", id).
			Count(&before).Error; err != nil {
			return entities.Book{}, false, err
		}
		position = int(before)
	}
	return doc.Normalize(position, r.now().UTC()), true, nil
}

func decode(rec entities.LegacyRecord) (entities.LegacyBook, error) {
	var book entities.LegacyBook
	if err := json.Unmarshal([]byte(rec.Payload), &book); err != nil {
		return entities.LegacyBook{}, fmt.Errorf("%w: decode legacy record %s: %v", database.ErrTransactionFailure, rec.ID, err)
	}
	if book.ID == "" {
		book.ID = rec.ID
	}
	return book, nil
}

func putDocument(tx *gorm.DB, book entities.LegacyBook) error {
	if book.ID == "" {
		return fmt.Errorf("%w: missing id", database.ErrInvalidBook)
	}
	payload, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("encode legacy record %s: %w", book.ID, err)
	}
	record := entities.LegacyRecord{ID: book.ID, Payload: string(payload)}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload"}),
	}).Create(&record).Error
}
