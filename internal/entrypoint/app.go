package entrypoint

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	auditRepo "github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/database/current"
	"github.com/mrlokans/bookshelf/internal/database/legacy"
	"github.com/mrlokans/bookshelf/internal/database/meta"
	"github.com/mrlokans/bookshelf/internal/database/settings"
	"github.com/mrlokans/bookshelf/internal/flags"
	"github.com/mrlokans/bookshelf/internal/health"
	"github.com/mrlokans/bookshelf/internal/migration"
	"github.com/mrlokans/bookshelf/internal/storage"
)

// App holds the storage engine and its collaborators, wired from Config.
// Both the server and the one-shot CLI commands build one.
type App struct {
	Config  *config.Config
	DB      *database.Database
	FlagsDB *database.Database
	Flags   *flags.SettingsStore
	Audit   *audit.Service
	Monitor *health.Monitor
	Library *storage.Library
}

// NewApp opens the library and flag databases and wires the storage facade.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path, database.WithMaxPageCount(cfg.Database.MaxPageCount))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	flagsDB, err := database.NewFlagsDatabase(cfg.FlagsDatabasePath())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize flag store: %w", err)
	}

	flagStore := flags.NewSettingsStore(settings.NewRepository(flagsDB.DB), flags.Defaults{
		Backend: cfg.Storage.Backend,
		DualRun: &cfg.Storage.DualRun,
	})
	auditService := audit.NewService(auditRepo.NewRepository(db.DB))
	metaRepo := meta.NewRepository(db.DB)
	currentRepo := current.NewRepository(db.DB)
	legacyRepo := legacy.NewRepository(db.DB)

	monitor := health.NewMonitor(ctx, metaRepo, flagStore,
		health.WithThreshold(cfg.Storage.FailureThreshold),
		health.WithRecorder(auditService),
	)

	migrationOpts := []migration.Option{migration.WithRecorder(auditService)}
	if cfg.Audit.ArchiveDir != "" {
		migrationOpts = append(migrationOpts, migration.WithArchiver(audit.NewArchiver(cfg.Audit.ArchiveDir)))
	}
	coordinator := migration.NewCoordinator(legacyRepo, currentRepo, metaRepo, migrationOpts...)

	library := storage.NewLibrary(storage.Config{
		Current:  currentRepo,
		Legacy:   legacyRepo,
		Flags:    flagStore,
		Monitor:  monitor,
		Migrator: coordinator,
	})

	zap.S().Named("app").Infow("Storage engine ready",
		"database", cfg.Database.Path,
		"flags", cfg.FlagsDatabasePath(),
		"backend", flagStore.Backend(ctx),
		"dual_run", flagStore.DualRun(ctx),
	)

	return &App{
		Config:  cfg,
		DB:      db,
		FlagsDB: flagsDB,
		Flags:   flagStore,
		Audit:   auditService,
		Monitor: monitor,
		Library: library,
	}, nil
}

// Close waits for pending audit writes and closes both databases.
func (a *App) Close() error {
	a.Audit.Wait()
	if err := a.FlagsDB.Close(); err != nil {
		return fmt.Errorf("failed to close flag store: %w", err)
	}
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
