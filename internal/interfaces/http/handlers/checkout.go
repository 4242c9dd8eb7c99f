// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
)

// CheckoutHandler handles checkout and coupon preview endpoints
type CheckoutHandler struct {
	paymentService *payment.Service
	cartService    *cart.Service
	couponService  *coupon.Service
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(paymentService *payment.Service, cartService *cart.Service, couponService *coupon.Service) *CheckoutHandler {
	return &CheckoutHandler{
		paymentService: paymentService,
		cartService:    cartService,
		couponService:  couponService,
	}
}

// Checkout handles POST /checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req order.CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithBindError(c, err)
			return
		}
	}

	result, err := h.paymentService.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		respondWithError(c, err, "Failed to complete checkout")
		return
	}

	message := "Order placed and paid successfully"
	if !result.Paid {
		message = "Order placed. Complete the payment at checkout_url"
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"data":    result,
	})
}

// ValidateCoupon handles POST /coupons/validate. Without an explicit
// subtotal the discount is previewed against the user's cart.
func (h *CheckoutHandler) ValidateCoupon(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req coupon.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	var subtotal int64
	if req.Subtotal == nil {
		userCart, err := h.cartService.GetCart(userID)
		if err != nil {
			respondWithError(c, err, "Failed to retrieve cart")
			return
		}
		subtotal = userCart.Subtotal
	}

	preview, err := h.couponService.Validate(&req, subtotal)
	if err != nil {
		respondWithError(c, err, "Failed to validate coupon")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon is valid",
		"data":    preview,
	})
}
