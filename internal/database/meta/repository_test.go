package meta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "meta.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB)
}

func TestRepository_SaveAndLoad(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	marker := entities.MigrationMarker{
		Version:     1,
		CompletedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceCount: 3,
		Checksum:    "v1:abc",
	}
	require.NoError(t, repo.Save(ctx, entities.MetaKeyMigrationMarker, marker))

	var loaded entities.MigrationMarker
	found, err := repo.Load(ctx, entities.MetaKeyMigrationMarker, &loaded)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, loaded.SourceCount)
	assert.Equal(t, "v1:abc", loaded.Checksum)
	assert.True(t, marker.CompletedAt.Equal(loaded.CompletedAt))
}

func TestRepository_Load_Missing(t *testing.T) {
	repo := setupTestDB(t)

	var count int
	found, err := repo.Load(context.Background(), "missing", &count)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_Save_Overwrites(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, entities.MetaKeyHealthFailures, 1))
	require.NoError(t, repo.Save(ctx, entities.MetaKeyHealthFailures, 2))

	var count int
	found, err := repo.Load(ctx, entities.MetaKeyHealthFailures, &count)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, count)
}

func TestRepository_SaveIfAbsent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	written, err := repo.SaveIfAbsent(ctx, entities.MetaKeyMigrationMarker, entities.MigrationMarker{Checksum: "first"})
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repo.SaveIfAbsent(ctx, entities.MetaKeyMigrationMarker, entities.MigrationMarker{Checksum: "second"})
	require.NoError(t, err)
	assert.False(t, written, "existing marker must not be replaced")

	var marker entities.MigrationMarker
	_, err = repo.Load(ctx, entities.MetaKeyMigrationMarker, &marker)
	require.NoError(t, err)
	assert.Equal(t, "first", marker.Checksum)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "to-delete", "value"))
	require.NoError(t, repo.Delete(ctx, "to-delete"))

	var value string
	found, err := repo.Load(ctx, "to-delete", &value)
	require.NoError(t, err)
	assert.False(t, found)

	// Should not error even if key doesn't exist
	assert.NoError(t, repo.Delete(ctx, "to-delete"))
}
