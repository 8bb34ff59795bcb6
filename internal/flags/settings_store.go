package flags

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// SettingsRepository is the subset of the settings table the store needs.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// SettingsStore persists overrides in the settings table.
type SettingsStore struct {
	repo     SettingsRepository
	defaults Defaults
}

func NewSettingsStore(repo SettingsRepository, defaults Defaults) *SettingsStore {
	return &SettingsStore{repo: repo, defaults: defaults}
}

func (s *SettingsStore) Backend(ctx context.Context) Backend {
	return Backend(s.backendInfo(ctx).Value)
}

func (s *SettingsStore) SetBackend(ctx context.Context, b Backend) error {
	if !b.Valid() {
		_, err := ParseBackend(string(b))
		return err
	}
	return s.repo.SetSetting(ctx, entities.SettingKeyStorageBackend, string(b))
}

func (s *SettingsStore) DualRun(ctx context.Context) bool {
	enabled, _ := strconv.ParseBool(s.dualRunInfo(ctx).Value)
	return enabled
}

func (s *SettingsStore) SetDualRun(ctx context.Context, enabled bool) error {
	return s.repo.SetSetting(ctx, entities.SettingKeyStorageDualRun, strconv.FormatBool(enabled))
}

func (s *SettingsStore) Reset(ctx context.Context) error {
	if err := s.repo.DeleteSetting(ctx, entities.SettingKeyStorageBackend); err != nil {
		return err
	}
	return s.repo.DeleteSetting(ctx, entities.SettingKeyStorageDualRun)
}

func (s *SettingsStore) Info(ctx context.Context) Info {
	return Info{Backend: s.backendInfo(ctx), DualRun: s.dualRunInfo(ctx)}
}

func (s *SettingsStore) backendInfo(ctx context.Context) FlagInfo {
	if value, ok := s.setting(ctx, entities.SettingKeyStorageBackend); ok {
		if b, err := ParseBackend(value); err == nil {
			return FlagInfo{Value: string(b), Source: SourceSetting}
		}
		zap.S().Named("flags").Warnw("Ignoring invalid persisted backend", "value", value)
	}
	return s.defaults.backend()
}

func (s *SettingsStore) dualRunInfo(ctx context.Context) FlagInfo {
	if value, ok := s.setting(ctx, entities.SettingKeyStorageDualRun); ok {
		if enabled, err := strconv.ParseBool(value); err == nil {
			return FlagInfo{Value: strconv.FormatBool(enabled), Source: SourceSetting}
		}
		zap.S().Named("flags").Warnw("Ignoring invalid persisted dual-run flag", "value", value)
	}
	return s.defaults.dualRun()
}

// setting reads a persisted override. A read error counts as "not set" so a
// broken settings table never blocks backend selection.
func (s *SettingsStore) setting(ctx context.Context, key string) (string, bool) {
	value, found, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		zap.S().Named("flags").Warnw("Failed to read flag setting", "key", key, "error", err)
		return "", false
	}
	return value, found && value != ""
}
