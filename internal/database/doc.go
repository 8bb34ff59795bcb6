// Package database provides the durable store underneath the library engine.
//
// # Architecture
//
// The database layer is organized into backend-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, schema migration, quota pragma
//	├── errors.go        # Driver error classification (quota vs. generic)
//	├── current/         # Normalized layout: metadata table + cover table
//	├── legacy/          # Single-table layout, whole record per row
//	├── meta/            # Key/value bookkeeping: migration marker, health records
//	├── settings/        # Persisted runtime settings (feature flags)
//	└── audit/           # Audit event trail
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./bookshelf.db")
//
//	currentRepo := current.NewRepository(db.DB)
//	legacyRepo := legacy.NewRepository(db.DB)
//	metaRepo := meta.NewRepository(db.DB)
//
// # Transactions
//
// Every repository operation runs inside one gorm transaction so a logical
// operation (a replace-all, a patch, a joined read) is atomic with respect to
// other operations of the same process. The connection pool is pinned to a
// single connection; the engine assumes it is the only writer of the file.
//
// # Errors
//
// Repositories return errors passed through ClassifyError, so callers can test
// for ErrQuotaExceeded and ErrTransactionFailure with errors.Is.
package database
