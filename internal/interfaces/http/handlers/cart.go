// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
)

// SessionHeader carries the anonymous cart session of a guest
const SessionHeader = "X-Session-ID"

// CartHandler handles cart endpoints. Signed-in users get their database
// cart; guests identified by X-Session-ID get a Redis cart.
type CartHandler struct {
	cartService *cart.Service
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	var (
		cartResponse *cart.CartResponse
		err          error
	)
	if userID, exists := middleware.GetUserIDFromContext(c); exists {
		cartResponse, err = h.cartService.GetCart(userID)
	} else if sessionID, ok := h.sessionID(c); ok {
		cartResponse, err = h.cartService.GetGuestCart(c.Request.Context(), sessionID)
	} else {
		return
	}
	if err != nil {
		respondWithError(c, err, "Failed to retrieve cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    cartResponse,
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req cart.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	var (
		cartResponse *cart.CartResponse
		err          error
	)
	if userID, exists := middleware.GetUserIDFromContext(c); exists {
		cartResponse, err = h.cartService.AddToCart(userID, &req)
	} else if sessionID, ok := h.sessionID(c); ok {
		cartResponse, err = h.cartService.AddToGuestCart(c.Request.Context(), sessionID, &req)
	} else {
		return
	}
	if err != nil {
		respondWithError(c, err, "Failed to add item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    cartResponse,
	})
}

// UpdateCartItem handles PATCH /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req cart.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	result, err := h.cartService.UpdateCartItem(userID, itemID, &req)
	if err != nil {
		respondWithError(c, err, "Failed to update cart item")
		return
	}

	message := "Cart item updated successfully"
	if result.Removed {
		message = "Item removed from cart"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    result,
	})
}

// RemoveFromCart handles DELETE /cart/items/:id. For a guest the ID is the
// book ID, since Redis carts have no line IDs.
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var (
		cartResponse *cart.CartResponse
		err          error
	)
	if userID, exists := middleware.GetUserIDFromContext(c); exists {
		cartResponse, err = h.cartService.RemoveFromCart(userID, id)
	} else if sessionID, ok := h.sessionID(c); ok {
		cartResponse, err = h.cartService.RemoveFromGuestCart(c.Request.Context(), sessionID, id)
	} else {
		return
	}
	if err != nil {
		respondWithError(c, err, "Failed to remove item from cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    cartResponse,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.cartService.ClearCart(userID); err != nil {
		respondWithError(c, err, "Failed to clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	count, err := h.cartService.GetCartItemCount(userID)
	if err != nil {
		respondWithError(c, err, "Failed to count cart items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart count retrieved successfully",
		"data": gin.H{
			"count": count,
		},
	})
}

// MergeGuestCart handles POST /cart/merge, called right after login
func (h *CartHandler) MergeGuestCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	cartResponse, err := h.cartService.MergeGuestCart(c.Request.Context(), userID, sessionID)
	if err != nil {
		respondWithError(c, err, "Failed to merge cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Guest cart merged successfully",
		"data":    cartResponse,
	})
}

// sessionID reads the guest session header or writes 400
func (h *CartHandler) sessionID(c *gin.Context) (string, bool) {
	sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
	if sessionID == "" {
		respondWithError(c, cart.ErrSessionIDRequired, "")
		return "", false
	}
	return sessionID, true
}
