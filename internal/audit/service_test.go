package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/database"
	auditRepo "github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "audit.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)

	svc := NewService(auditRepo.NewRepository(db.DB))
	t.Cleanup(func() {
		svc.Wait()
		db.Close()
	})

	return svc, db.DB
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventStorage,
		Action:      "test_event",
		Description: "Test event",
		Status:      entities.AuditStatusSuccess,
	}

	require.NoError(t, svc.Log(context.Background(), event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "test_event", saved.Action)
}

func TestService_LogMigration(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful migration", func(t *testing.T) {
		svc.LogMigration(5, "v1:abc", nil)
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ? AND status = ?", "legacy_migration", entities.AuditStatusSuccess).First(&event).Error)
		assert.Equal(t, "Migrated 5 books from the legacy store", event.Description)
		assert.Contains(t, event.Metadata, "v1:abc")
	})

	t.Run("failed migration", func(t *testing.T) {
		svc.LogMigration(0, "", errors.New("disk full"))
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ? AND status = ?", "legacy_migration", entities.AuditStatusFailed).First(&event).Error)
		assert.Contains(t, event.ErrorMsg, "disk full")
	})
}

func TestService_LogFallback(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogFallback(3, errors.New("storage transaction failed"))
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "auto_fallback").First(&event).Error)
	assert.Equal(t, entities.AuditEventStorage, event.EventType)
	assert.Contains(t, event.Description, "3 consecutive failures")
	assert.Contains(t, event.ErrorMsg, "transaction failed")
}

func TestService_LogSettingsAndExport(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogSettings("storage_backend_changed", "Backend set to legacy")
	svc.LogExport(12, "exports/library.json", nil)
	svc.Wait()

	events, total, err := svc.GetEvents(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)

	var export entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "json_export").First(&export).Error)
	assert.Equal(t, "Exported 12 books", export.Description)
}

func TestService_LogDualRead(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogDualRead(entities.DualReadResult{Match: false, CurrentCount: 2, LegacyCount: 3, MissingInCurrent: []string{"c"}})
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "dual_read_check").First(&event).Error)
	assert.Equal(t, entities.AuditStatusFailed, event.Status)
	assert.Equal(t, "Backends differ: current=2 legacy=3", event.Description)
	assert.Contains(t, event.Metadata, `"missing_in_current":["c"]`)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{Action: "old", CreatedAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{Action: "new"}))

	deleted, err := svc.DeleteOldEvents(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
