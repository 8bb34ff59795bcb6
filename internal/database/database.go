package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

type options struct {
	maxPageCount int
	logLevel     logger.LogLevel
	models       []any
}

// Option configures NewDatabase.
type Option func(*options)

// WithMaxPageCount caps the database file at n pages. Writes beyond the cap fail
// with ErrQuotaExceeded. n <= 0 leaves the file unbounded.
func WithMaxPageCount(n int) Option {
	return func(o *options) {
		o.maxPageCount = n
	}
}

// WithLogLevel sets the gorm query log level.
func WithLogLevel(level logger.LogLevel) Option {
	return func(o *options) {
		o.logLevel = level
	}
}

// WithModels limits the schema to the given models.
func WithModels(models ...any) Option {
	return func(o *options) {
		o.models = models
	}
}

// NewFlagsDatabase opens the small store that holds only runtime settings. It
// lives in its own file so a full library database cannot block a backend
// switch.
func NewFlagsDatabase(dbPath string, opts ...Option) (*Database, error) {
	return NewDatabase(dbPath, append(opts, WithModels(&entities.Setting{}))...)
}

func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	o := options{
		logLevel: logger.Warn,
		models: []any{
			&entities.BookRecord{},
			&entities.CoverRecord{},
			&entities.LegacyRecord{},
			&entities.MetaEntry{},
			&entities.AuditEvent{},
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(o.logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql database: %w", err)
	}
	// One writer per process; PRAGMAs below are per connection.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(o.models...)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if o.maxPageCount > 0 {
		if err := db.Exec(fmt.Sprintf("PRAGMA max_page_count = %d", o.maxPageCount)).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to set max page count: %w", err)
		}
	}

	zap.S().Named("database").Infow("database initialized", "path", dbPath, "max_page_count", o.maxPageCount)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the underlying connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
