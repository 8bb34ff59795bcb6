package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Storage backend selection, overrides STORAGE_BACKEND
	SettingKeyStorageBackend = "storage_backend"
	// Dual-run verification toggle, overrides STORAGE_DUAL_RUN
	SettingKeyStorageDualRun = "storage_dual_run"
)
