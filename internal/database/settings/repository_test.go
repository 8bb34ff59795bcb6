package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/database"
)

func setupTestDB(t *testing.T) *Repository {
	db, err := database.NewFlagsDatabase(filepath.Join(t.TempDir(), "settings.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.DB)
}

func TestRepository_SetSetting_New(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	err := repo.SetSetting(ctx, "storage_backend", "legacy")
	require.NoError(t, err)

	value, found, err := repo.GetSetting(ctx, "storage_backend")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "legacy", value)
}

func TestRepository_SetSetting_Update(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	// Set initial value
	require.NoError(t, repo.SetSetting(ctx, "storage_backend", "legacy"))

	// Update value
	require.NoError(t, repo.SetSetting(ctx, "storage_backend", "current"))

	value, _, err := repo.GetSetting(ctx, "storage_backend")
	require.NoError(t, err)
	assert.Equal(t, "current", value)
}

func TestRepository_GetSetting_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	value, found, err := repo.GetSetting(context.Background(), "nonexistent")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SetSetting(ctx, "to-delete", "value"))
	require.NoError(t, repo.DeleteSetting(ctx, "to-delete"))

	_, found, err := repo.GetSetting(ctx, "to-delete")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_DeleteSetting_NonExistent(t *testing.T) {
	repo := setupTestDB(t)

	// Should not error even if key doesn't exist
	err := repo.DeleteSetting(context.Background(), "nonexistent")
	assert.NoError(t, err)
}
