package entrypoint

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database/legacy"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/flags"
	"github.com/mrlokans/bookshelf/internal/health"
	"github.com/mrlokans/bookshelf/internal/migration"
	"github.com/mrlokans/bookshelf/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Database.Path = filepath.Join(dir, "library.db")
	cfg.Audit.ArchiveDir = filepath.Join(dir, "archive")
	return cfg
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Equal(t, flags.BackendCurrent, app.Flags.Backend(ctx))

	added, err := app.Library.AddBook(ctx, entities.Book{Title: "Dune"})
	require.NoError(t, err)

	book, found := app.Library.GetBook(ctx, added.ID)
	require.True(t, found)
	assert.Equal(t, "Dune", book.Title)
}

func TestNewApp_SettingOverridesConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	app, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, app.Flags.SetBackend(ctx, flags.BackendLegacy))
	require.NoError(t, app.Close())

	reopened, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	info := reopened.Flags.Info(ctx)
	assert.Equal(t, "legacy", info.Backend.Value)
	assert.Equal(t, flags.SourceSetting, info.Backend.Source)
}

func TestNewApp_FlagsInSeparateFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	app, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Equal(t, filepath.Join(filepath.Dir(cfg.Database.Path), "library-flags.db"), cfg.FlagsDatabasePath())
	_, err = os.Stat(cfg.FlagsDatabasePath())
	assert.NoError(t, err)
	assert.False(t, app.DB.DB.Migrator().HasTable("settings"))
}

func TestNewApp_FallbackWhenLibraryDatabaseIsFull(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	// Run the empty migration first, then freeze the library file at its
	// current size.
	app.Library.LoadLibrary(ctx)
	require.NoError(t, app.DB.DB.Exec("PRAGMA max_page_count = 1").Error)

	big := entities.Book{ID: "big", Title: "Big", Cover: entities.BlobCover(bytes.Repeat([]byte{0xff}, 256*1024), "image/png")}
	for i := 0; i < health.DefaultThreshold; i++ {
		err := app.Library.SaveLibrary(ctx, entities.LibraryState{Books: []entities.Book{big}})
		require.ErrorIs(t, err, storage.ErrQuotaExceeded)
	}

	info := app.Flags.Info(ctx)
	assert.Equal(t, "legacy", info.Backend.Value)
	assert.Equal(t, flags.SourceSetting, info.Backend.Source)
}

func TestNewApp_MigratesLegacyAndArchives(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	app, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NoError(t, legacy.NewRepository(app.DB.DB).SaveRaw(ctx, []entities.LegacyBook{{ID: "old", Title: "Old"}}))

	result, err := app.Library.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.StatusMigrated, result.Status)
	assert.Equal(t, 1, result.Count)

	archives, err := filepath.Glob(filepath.Join(cfg.Audit.ArchiveDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, archives, 1)

	_, found := app.Library.GetBook(ctx, "old")
	assert.True(t, found)
}

func TestNewLogger(t *testing.T) {
	logger, sync, err := NewLogger(config.Log{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger)
	sync()

	_, _, err = NewLogger(config.Log{Level: "loud"})
	assert.Error(t, err)
}
