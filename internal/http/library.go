package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/entities"
)

type LibraryController struct {
	library Library
	auditor Auditor
}

func NewLibraryController(library Library, auditor Auditor) *LibraryController {
	return &LibraryController{library: library, auditor: auditor}
}

// GetLibrary handles GET /api/library
func (lc *LibraryController) GetLibrary(c *gin.Context) {
	state := lc.library.LoadLibrary(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"books": state.Books, "count": len(state.Books)})
}

// SaveLibrary handles PUT /api/library
// The body replaces the whole library; books missing from it are deleted.
// A book without an id or a repeated id is answered with 400.
func (lc *LibraryController) SaveLibrary(c *gin.Context) {
	var state entities.LibraryState
	if err := c.ShouldBindJSON(&state); err != nil {
		respondBadRequest(c, "invalid library: "+err.Error())
		return
	}
	if err := lc.library.SaveLibrary(c.Request.Context(), state); err != nil {
		respondStorageError(c, err, "save library")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(state.Books)})
}

// Export handles GET /api/export
// Streams the library as a JSON attachment with covers inlined.
func (lc *LibraryController) Export(c *gin.Context) {
	filename := lc.library.ExportFileName()
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	result, err := lc.library.ExportLibraryToJSON(c.Request.Context(), c.Writer)
	if lc.auditor != nil {
		lc.auditor.LogExport(result.BooksProcessed, "download:"+filename, err)
	}
	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		_ = c.Error(err)
	}
}
