package http

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := zap.L().Named("http")

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	health := NewHealthController(cfg.Pinger, cfg.Library, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	libraryController := NewLibraryController(cfg.Library, cfg.Auditor)
	router.GET("/api/library", libraryController.GetLibrary)
	router.PUT("/api/library", libraryController.SaveLibrary)
	router.GET("/api/export", libraryController.Export)

	booksController := NewBooksController(cfg.Library, cfg.TaskQueue, cfg.ResolveCovers)
	router.POST("/api/books", booksController.AddBook)
	router.POST("/api/books/reorder", booksController.Reorder)
	router.GET("/api/books/:id", booksController.GetBook)
	router.PUT("/api/books/:id", booksController.ReplaceBook)
	router.PATCH("/api/books/:id", booksController.PatchBook)
	router.DELETE("/api/books/:id", booksController.DeleteBook)

	if cfg.Flags != nil {
		storageController := NewStorageController(cfg.Library, cfg.Flags, cfg.Auditor)
		router.GET("/api/storage/flags", storageController.GetFlags)
		router.PUT("/api/storage/flags", storageController.UpdateFlags)
		router.POST("/api/storage/flags/reset", storageController.ResetFlags)
		router.GET("/api/storage/health", storageController.GetHealth)
		router.POST("/api/storage/migrate", storageController.Migrate)
		router.POST("/api/storage/verify", storageController.VerifyDualRead)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue)
		router.GET("/api/tasks/types", tasksController.ListTaskTypes)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
