package entities

import "time"

// MetaEntry is a row of the key/value table holding engine bookkeeping.
type MetaEntry struct {
	Key       string    `gorm:"primaryKey;size:100"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (MetaEntry) TableName() string {
	return "storage_meta"
}

const (
	MetaKeyMigrationMarker   = "migration_marker"
	MetaKeyHealthFailures    = "health_failures"
	MetaKeyHealthLastSuccess = "health_last_success"
	MetaKeyHealthLastFailure = "health_last_failure"
	MetaKeyHealthDualRead    = "health_dual_read"
)

// MigrationMarker proves the legacy-to-current transfer completed. It is
// written once and never revoked.
type MigrationMarker struct {
	Version     int       `json:"version"`
	CompletedAt time.Time `json:"completed_at"`
	SourceCount int       `json:"source_count"`
	Checksum    string    `json:"checksum"`
}

// OperationRecord is the last success or failure seen by the health monitor.
type OperationRecord struct {
	Operation  string    `json:"operation"`
	At         time.Time `json:"at"`
	Success    bool      `json:"success"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Failures   int       `json:"failures,omitempty"`
}

// DualReadResult compares the id sets returned by both backends.
type DualReadResult struct {
	At               time.Time `json:"at"`
	Context          string    `json:"context"`
	Match            bool      `json:"match"`
	CurrentCount     int       `json:"current_count"`
	LegacyCount      int       `json:"legacy_count"`
	MissingInCurrent []string  `json:"missing_in_current,omitempty"`
	MissingInLegacy  []string  `json:"missing_in_legacy,omitempty"`
}
