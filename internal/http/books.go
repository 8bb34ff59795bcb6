package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

type BooksController struct {
	library       Library
	taskQueue     TaskQueue
	resolveCovers bool
}

func NewBooksController(library Library, taskQueue TaskQueue, resolveCovers bool) *BooksController {
	return &BooksController{
		library:       library,
		taskQueue:     taskQueue,
		resolveCovers: resolveCovers,
	}
}

// AddBook handles POST /api/books
func (controller *BooksController) AddBook(c *gin.Context) {
	var book entities.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		respondBadRequest(c, "invalid book: "+err.Error())
		return
	}
	if strings.TrimSpace(book.Title) == "" {
		respondBadRequest(c, "title is required")
		return
	}
	if book.Status != "" && !book.Status.Valid() {
		respondBadRequest(c, "invalid status")
		return
	}

	stored, err := controller.library.AddBook(c.Request.Context(), book)
	if err != nil {
		respondStorageError(c, err, "add book")
		return
	}

	if controller.resolveCovers && controller.taskQueue != nil && stored.Cover.IsNone() {
		if _, err := controller.taskQueue.Add(tasks.ResolveCoverTask{BookID: stored.ID}).Save(); err != nil {
			zap.S().Named("http").Warnw("Failed to enqueue cover resolution", "book_id", stored.ID, "error", err)
		}
	}

	setETag(c, stored.Version)
	respondCreated(c, stored)
}

// GetBook handles GET /api/books/:id
func (controller *BooksController) GetBook(c *gin.Context) {
	book, found := controller.library.GetBook(c.Request.Context(), c.Param("id"))
	if !found {
		respondNotFound(c, "book")
		return
	}
	setETag(c, book.Version)
	c.JSON(http.StatusOK, book)
}

// ReplaceBook handles PUT /api/books/:id
// The stored version is bumped; any version in the body is ignored.
func (controller *BooksController) ReplaceBook(c *gin.Context) {
	id := c.Param("id")
	var book entities.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		respondBadRequest(c, "invalid book: "+err.Error())
		return
	}
	if book.ID != "" && book.ID != id {
		respondBadRequest(c, "book id does not match the URL")
		return
	}
	book.ID = id

	ctx := c.Request.Context()
	if _, found := controller.library.GetBook(ctx, id); !found {
		respondNotFound(c, "book")
		return
	}
	if err := controller.library.SaveBook(ctx, book); err != nil {
		respondStorageError(c, err, "save book")
		return
	}

	saved, found := controller.library.GetBook(ctx, id)
	if !found {
		c.JSON(http.StatusOK, book)
		return
	}
	setETag(c, saved.Version)
	c.JSON(http.StatusOK, saved)
}

// PatchBook handles PATCH /api/books/:id
// Pass the expected version as If-Match or ?expectedVersion= to guard against
// concurrent edits.
func (controller *BooksController) PatchBook(c *gin.Context) {
	expected, ok := parseExpectedVersion(c)
	if !ok {
		return
	}
	var patch entities.BookPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid patch: "+err.Error())
		return
	}

	result, err := controller.library.UpdateBookPatch(c.Request.Context(), c.Param("id"), patch, expected)
	if err != nil {
		respondStorageError(c, err, "patch book")
		return
	}
	if !result.OK {
		respondPatchRejected(c, result)
		return
	}
	setETag(c, result.Version)
	c.JSON(http.StatusOK, result)
}

// DeleteBook handles DELETE /api/books/:id
func (controller *BooksController) DeleteBook(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	if _, found := controller.library.GetBook(ctx, id); !found {
		respondNotFound(c, "book")
		return
	}
	if err := controller.library.RemoveBook(ctx, id); err != nil {
		respondStorageError(c, err, "remove book")
		return
	}
	respondSuccess(c, "book removed")
}

type ReorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// Reorder handles POST /api/books/reorder
func (controller *BooksController) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "ids are required")
		return
	}
	if err := controller.library.SaveReorder(c.Request.Context(), req.IDs); err != nil {
		respondStorageError(c, err, "reorder books")
		return
	}
	respondSuccess(c, "order saved")
}

func setETag(c *gin.Context, version int) {
	c.Header("ETag", strconv.Quote(strconv.Itoa(version)))
}
