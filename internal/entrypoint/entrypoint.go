package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/covers"
	http_controllers "github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then shuts it down within
// the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	logger := zap.S().Named("server")
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Infow("Shutting down server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

// Run wires the storage engine, the task queue, the dual-run verifier and the
// HTTP API, then serves until interrupted.
func Run(cfg *config.Config, version string) error {
	logger := zap.S().Named("app")
	logger.Infow("Starting Bookshelf", "version", version)

	ctx := context.Background()
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Errorw("Error closing app", "error", err)
		}
	}()

	// Touch the library once so a pending legacy migration runs at startup
	// rather than on the first request.
	state := app.Library.LoadLibrary(ctx)
	logger.Infow("Library loaded", "books", len(state.Books))

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(tasks.QueuePath(cfg.Database.Path, cfg.Tasks.DatabasePath), tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Errorw("Error closing task client", "error", err)
			}
		}()

		coverDeps := newCoverDeps(app, cfg.Covers)
		taskClient.Register(
			tasks.NewResolveCoverQueue(coverDeps),
			tasks.NewResolveMissingCoversQueue(coverDeps),
			tasks.NewCleanupAuditEventsQueue(app.Audit),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		if _, err := taskClient.Enqueue(ctx, tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}); err != nil {
			logger.Warnw("Failed to enqueue audit cleanup", "error", err)
		}
	}

	verifier := scheduler.NewDualRunVerifier(app.Library, app.Flags, app.Audit, cfg.Storage.DualRunSchedule)
	if err := verifier.Start(ctx); err != nil {
		logger.Warnw("Dual-run verifier not started", "error", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Library:       app.Library,
		Flags:         app.Flags,
		Auditor:       app.Audit,
		Pinger:        app.DB,
		ResolveCovers: cfg.Covers.ResolverEnabled,
		Version:       version,
	}
	// A nil *tasks.Client must not end up in the interface.
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
	}
	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		verifier.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(router, cfg, onShutdown)
}

func newCoverDeps(app *App, cfg config.Covers) tasks.CoverDeps {
	deps := tasks.CoverDeps{Library: app.Library}
	if !cfg.ResolverEnabled {
		return deps
	}
	deps.Resolver = covers.NewOpenLibraryResolver(cfg.BaseURL, covers.WithCoversURL(cfg.CoversURL))
	if cfg.FetchBlobs {
		deps.Fetcher = covers.NewFetcher(cfg.MaxBytes)
	}
	return deps
}
