// Package meta stores engine bookkeeping as JSON documents in a key/value table.
//
// # Usage
//
//	repo := meta.NewRepository(db)
//	var marker entities.MigrationMarker
//	found, err := repo.Load(ctx, entities.MetaKeyMigrationMarker, &marker)
package meta

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

// Repository handles all key/value bookkeeping operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new meta repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Load decodes the value stored under key into v. It reports false when the key is absent.
func (r *Repository) Load(ctx context.Context, key string, v any) (bool, error) {
	var entry entities.MetaEntry
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, database.ClassifyError(err)
	}
	if err := json.Unmarshal([]byte(entry.Value), v); err != nil {
		return false, fmt.Errorf("decode meta %q: %w", key, err)
	}
	return true, nil
}

// Save stores v under key, replacing any previous value.
func (r *Repository) Save(ctx context.Context, key string, v any) error {
	entry, err := r.entry(key, v)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	return database.ClassifyError(err)
}

// SaveIfAbsent stores v under key only when the key does not exist yet. It
// reports whether this call wrote the value; an existing value is never replaced.
func (r *Repository) SaveIfAbsent(ctx context.Context, key string, v any) (bool, error) {
	entry, err := r.entry(key, v)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, database.ClassifyError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&entities.MetaEntry{}).Error
	return database.ClassifyError(err)
}

func (r *Repository) entry(key string, v any) (entities.MetaEntry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return entities.MetaEntry{}, fmt.Errorf("encode meta %q: %w", key, err)
	}
	return entities.MetaEntry{Key: key, Value: string(data), UpdatedAt: r.now().UTC()}, nil
}
