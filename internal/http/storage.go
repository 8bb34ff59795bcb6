package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/flags"
	"github.com/mrlokans/bookshelf/internal/storage"
)

// StorageController exposes the storage flags, health and migration.
type StorageController struct {
	library Library
	flags   flags.Store
	auditor Auditor
}

func NewStorageController(library Library, store flags.Store, auditor Auditor) *StorageController {
	return &StorageController{library: library, flags: store, auditor: auditor}
}

// GetFlags handles GET /api/storage/flags
func (sc *StorageController) GetFlags(c *gin.Context) {
	c.JSON(http.StatusOK, sc.flags.Info(c.Request.Context()))
}

type UpdateFlagsRequest struct {
	Backend *string `json:"backend"`
	DualRun *bool   `json:"dual_run"`
}

// UpdateFlags handles PUT /api/storage/flags
// Omitted fields are left unchanged.
func (sc *StorageController) UpdateFlags(c *gin.Context) {
	var req UpdateFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	var backend flags.Backend
	if req.Backend != nil {
		b, err := flags.ParseBackend(*req.Backend)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		backend = b
	}

	ctx := c.Request.Context()
	if req.Backend != nil {
		if err := sc.flags.SetBackend(ctx, backend); err != nil {
			respondInternalError(c, err, "set backend")
			return
		}
		sc.audit("storage_backend_changed", fmt.Sprintf("Storage backend set to %s", backend))
	}
	if req.DualRun != nil {
		if err := sc.flags.SetDualRun(ctx, *req.DualRun); err != nil {
			respondInternalError(c, err, "set dual-run")
			return
		}
		sc.audit("storage_dual_run_changed", fmt.Sprintf("Dual-run set to %t", *req.DualRun))
	}

	c.JSON(http.StatusOK, sc.flags.Info(ctx))
}

// ResetFlags handles POST /api/storage/flags/reset
func (sc *StorageController) ResetFlags(c *gin.Context) {
	ctx := c.Request.Context()
	if err := sc.flags.Reset(ctx); err != nil {
		respondInternalError(c, err, "reset flags")
		return
	}
	sc.audit("storage_flags_reset", "Storage flags reset to configuration")
	c.JSON(http.StatusOK, sc.flags.Info(ctx))
}

// GetHealth handles GET /api/storage/health
func (sc *StorageController) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	resp := gin.H{"health": sc.library.HealthSnapshot(ctx)}

	status, err := sc.library.MigrationStatus(ctx)
	if err != nil {
		resp["migration_error"] = err.Error()
	} else {
		resp["migration"] = status
	}
	c.JSON(http.StatusOK, resp)
}

// Migrate handles POST /api/storage/migrate
// Safe to call repeatedly; a completed migration reports already_done.
func (sc *StorageController) Migrate(c *gin.Context) {
	result, err := sc.library.Migrate(c.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			respondStorageError(c, err, "migrate")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyDualRead handles POST /api/storage/verify
func (sc *StorageController) VerifyDualRead(c *gin.Context) {
	result, err := sc.library.VerifyDualRead(c.Request.Context(), "api")
	if err != nil {
		respondInternalError(c, err, "verify dual read")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (sc *StorageController) audit(action, description string) {
	if sc.auditor != nil {
		sc.auditor.LogSettings(action, description)
	}
}
