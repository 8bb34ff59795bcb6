package audit

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

func setupTestRepo(t *testing.T) *Repository {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "audit.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.DB)
}

func TestRepository_LogEvent(t *testing.T) {
	repo := setupTestRepo(t)

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventMigration,
		Action:      "legacy_migration",
		Description: "Migrated 10 books",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// Create test events
	for i := 0; i < 15; i++ {
		event := &entities.AuditEvent{
			EventType:   entities.AuditEventStorage,
			Action:      "test_event",
			Description: "Test event",
			Status:      entities.AuditStatusSuccess,
			CreatedAt:   time.Now().Add(time.Duration(-i) * time.Hour),
		}
		require.NoError(t, repo.LogEvent(ctx, event))
	}

	events, total, err := repo.GetEvents(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
	assert.Len(t, events, 10)
	assert.True(t, events[0].CreatedAt.After(events[1].CreatedAt))

	events, _, err = repo.GetEvents(ctx, 10, 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestRepository_GetEventsByType(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{EventType: entities.AuditEventMigration, Action: "legacy_migration"}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{EventType: entities.AuditEventStorage, Action: "auto_fallback"}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{EventType: entities.AuditEventStorage, Action: "auto_fallback"}))

	events, total, err := repo.GetEventsByType(ctx, entities.AuditEventStorage, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, e := range events {
		assert.Equal(t, "auto_fallback", e.Action)
	}
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	old := &entities.AuditEvent{EventType: entities.AuditEventExport, Action: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := &entities.AuditEvent{EventType: entities.AuditEventExport, Action: "recent", CreatedAt: time.Now()}
	require.NoError(t, repo.LogEvent(ctx, old))
	require.NoError(t, repo.LogEvent(ctx, recent))

	deleted, err := repo.DeleteOldEvents(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "recent", events[0].Action)
}
