package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/entities"
)

const asyncWriteTimeout = 5 * time.Second

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		defer cancel()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			zap.S().Named("audit").Warnw("Failed to log audit event", "action", event.Action, "error", err)
		}
	}()
}

// Wait blocks until all background writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogMigration records the outcome of a legacy-to-current migration run.
func (s *Service) LogMigration(count int, checksum string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventMigration,
		Action:      "legacy_migration",
		Description: fmt.Sprintf("Migrated %d books from the legacy store", count),
		Metadata:    metadata(map[string]any{"count": count, "checksum": checksum}),
		Status:      entities.AuditStatusSuccess,
	}
	if err != nil {
		event.Description = "Legacy migration failed"
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogFallback records an automatic switch to the legacy backend.
func (s *Service) LogFallback(failures int, lastErr error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventStorage,
		Action:      "auto_fallback",
		Description: fmt.Sprintf("Switched to legacy backend after %d consecutive failures", failures),
		Metadata:    metadata(map[string]any{"failures": failures}),
		Status:      entities.AuditStatusFailed,
	}
	if lastErr != nil {
		event.ErrorMsg = truncate(lastErr.Error(), 500)
	}

	s.LogAsync(event)
}

// LogSettings records a settings change event.
func (s *Service) LogSettings(action, description string) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogExport records an export event.
func (s *Service) LogExport(count int, destination string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventExport,
		Action:      "json_export",
		Description: fmt.Sprintf("Exported %d books", count),
		EntityType:  "library",
		Metadata:    metadata(map[string]any{"count": count, "destination": destination}),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogDualRead records a scheduled comparison of both backends.
func (s *Service) LogDualRead(result entities.DualReadResult) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventStorage,
		Action:      "dual_read_check",
		Description: fmt.Sprintf("Backends match (%d books)", result.CurrentCount),
		Metadata: metadata(map[string]any{
			"current":            result.CurrentCount,
			"legacy":             result.LegacyCount,
			"missing_in_current": result.MissingInCurrent,
			"missing_in_legacy":  result.MissingInLegacy,
		}),
		Status: entities.AuditStatusSuccess,
	}
	if !result.Match {
		event.Description = fmt.Sprintf("Backends differ: current=%d legacy=%d", result.CurrentCount, result.LegacyCount)
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(ctx context.Context, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(ctx, eventType, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func metadata(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
