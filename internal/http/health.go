package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/flags"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Backend flags.Backend     `json:"backend,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db      Pinger
	library Library
	version string
}

func NewHealthController(db Pinger, library Library, version string) *HealthController {
	return &HealthController{
		db:      db,
		library: library,
		version: version,
	}
}

// Status reports liveness. A library running on the legacy fallback is still
// healthy but flagged as degraded.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	var backend flags.Backend
	if h.library != nil {
		snap := h.library.HealthSnapshot(c.Request.Context())
		backend = snap.Backend
		checks["storage"] = "ok"
		if snap.Failures > 0 {
			checks["storage"] = "failing"
		}
		if snap.Backend == flags.BackendLegacy {
			checks["storage"] = "degraded"
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Backend: backend,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
