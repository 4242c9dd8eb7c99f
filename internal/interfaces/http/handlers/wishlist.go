// internal/interfaces/http/handlers/wishlist.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/wishlist"
)

// WishlistHandler handles wishlist endpoints
type WishlistHandler struct {
	wishlistService *wishlist.Service
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlistService *wishlist.Service) *WishlistHandler {
	return &WishlistHandler{
		wishlistService: wishlistService,
	}
}

// GetWishlist handles GET /wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	response, err := h.wishlistService.GetWishlist(userID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve wishlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist retrieved successfully",
		"data":    response,
	})
}

// AddToWishlist handles POST /wishlist. Adding a book twice is harmless.
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req wishlist.AddToWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	item, err := h.wishlistService.AddToWishlist(userID, &req)
	if err != nil {
		respondWithError(c, err, "Failed to add item to wishlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to wishlist",
		"data":    item,
	})
}

// RemoveFromWishlist handles DELETE /wishlist/:book_id
func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	bookID, ok := uintParam(c, "book_id")
	if !ok {
		return
	}

	if err := h.wishlistService.RemoveFromWishlist(userID, bookID); err != nil {
		respondWithError(c, err, "Failed to remove item from wishlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from wishlist",
	})
}

// GetWishlistCount handles GET /wishlist/count
func (h *WishlistHandler) GetWishlistCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	count, err := h.wishlistService.GetWishlistCount(userID)
	if err != nil {
		respondWithError(c, err, "Failed to count wishlist items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist count retrieved successfully",
		"data": gin.H{
			"count": count,
		},
	})
}

// MoveToCart handles POST /wishlist/items/:id/move-to-cart
func (h *WishlistHandler) MoveToCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.wishlistService.MoveToCart(userID, itemID); err != nil {
		respondWithError(c, err, "Failed to move item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item moved to cart",
	})
}
