package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/storage"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found", Code: string(entities.PatchReasonNotFound)})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	zap.S().Named("http").Errorw("Internal error", "context", context, "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondError sends an error response with the given status code.
// Use the specific helpers (respondBadRequest, respondNotFound, etc.) when possible.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondStorageError maps facade errors onto status codes. Quota exhaustion
// carries the user-facing message.
func respondStorageError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, storage.ErrQuotaExceeded):
		c.JSON(http.StatusInsufficientStorage, ErrorResponse{Error: storage.QuotaMessage, Code: "quota_exceeded"})
	case errors.Is(err, storage.ErrInvalidBook), errors.Is(err, storage.ErrDuplicateID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, storage.ErrBookExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "book already exists", Code: "book_exists"})
	case errors.Is(err, storage.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable", Code: "storage_unavailable"})
	default:
		respondInternalError(c, err, context)
	}
}

// respondPatchRejected maps a rejected patch onto a status code.
func respondPatchRejected(c *gin.Context, result entities.PatchResult) {
	status := http.StatusInternalServerError
	switch result.Reason {
	case entities.PatchReasonNotFound:
		status = http.StatusNotFound
	case entities.PatchReasonVersionConflict:
		status = http.StatusConflict
	case entities.PatchReasonInvalid:
		status = http.StatusBadRequest
	case entities.PatchReasonStorageError:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorResponse{Error: "patch rejected", Code: string(result.Reason)})
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseExpectedVersion reads the expected version from the If-Match header or
// the expectedVersion query parameter. A missing value means unconditional.
// Responds with 400 and returns false on a malformed value.
func parseExpectedVersion(c *gin.Context) (*int, bool) {
	raw := c.GetHeader("If-Match")
	if raw == "" {
		raw = c.Query("expectedVersion")
	}
	if raw == "" {
		return nil, true
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		respondBadRequest(c, "invalid expected version")
		return nil, false
	}
	return &v, true
}
