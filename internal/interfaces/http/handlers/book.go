// internal/interfaces/http/handlers/book.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
)

// BookHandler handles storefront and back-office book endpoints
type BookHandler struct {
	catalogService *catalog.Service
}

// NewBookHandler creates a new book handler
func NewBookHandler(catalogService *catalog.Service) *BookHandler {
	return &BookHandler{
		catalogService: catalogService,
	}
}

// Home handles GET /home
func (h *BookHandler) Home(c *gin.Context) {
	home, err := h.catalogService.Home()
	if err != nil {
		respondWithError(c, err, "Failed to load home page")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Home retrieved successfully",
		"data":    home,
	})
}

// GetBooks handles GET /books
func (h *BookHandler) GetBooks(c *gin.Context) {
	var req catalog.BookListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	response, err := h.catalogService.ListBooks(&req)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Books retrieved successfully",
		"data":    response,
	})
}

// GetOffers handles GET /books/offers
func (h *BookHandler) GetOffers(c *gin.Context) {
	response, err := h.catalogService.ListOffers(queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve offers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Offers retrieved successfully",
		"data":    response,
	})
}

// GetBook handles GET /books/:slug
func (h *BookHandler) GetBook(c *gin.Context) {
	detail, err := h.catalogService.GetBookDetail(c.Param("slug"), optionalUser(c))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve book")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book retrieved successfully",
		"data":    detail,
	})
}

// Admin endpoints

// AdminGetBooks handles GET /admin/books
func (h *BookHandler) AdminGetBooks(c *gin.Context) {
	var req catalog.AdminBookListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	response, err := h.catalogService.AdminListBooks(&req)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Books retrieved successfully",
		"data":    response,
	})
}

// AdminGetBook handles GET /admin/books/:slug. Inactive books are included.
func (h *BookHandler) AdminGetBook(c *gin.Context) {
	book, err := h.catalogService.GetBookBySlug(c.Param("slug"))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve book")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book retrieved successfully",
		"data":    book,
	})
}

// AdminCreateBook handles POST /admin/books
func (h *BookHandler) AdminCreateBook(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req catalog.BookCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	book, err := h.catalogService.CreateBook(userID, &req)
	if err != nil {
		respondWithError(c, err, "Failed to create book")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Book created successfully",
		"data":    book,
	})
}

// AdminUpdateBook handles PUT /admin/books/:slug
func (h *BookHandler) AdminUpdateBook(c *gin.Context) {
	var req catalog.BookUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	book, err := h.catalogService.UpdateBook(c.Param("slug"), &req)
	if err != nil {
		respondWithError(c, err, "Failed to update book")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book updated successfully",
		"data":    book,
	})
}

// AdminDeleteBook handles DELETE /admin/books/:slug
func (h *BookHandler) AdminDeleteBook(c *gin.Context) {
	if err := h.catalogService.DeleteBook(c.Param("slug")); err != nil {
		respondWithError(c, err, "Failed to delete book")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"message": "Book deleted successfully",
		"data": gin.H{
			"slug":       c.Param("slug"),
			"deleted_by": userID,
		},
	})
}
