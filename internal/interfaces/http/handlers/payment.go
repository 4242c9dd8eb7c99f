// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
)

// maxWebhookBytes bounds the webhook body read into memory
const maxWebhookBytes = 1 << 20

// PaymentHandler receives payment gateway callbacks
type PaymentHandler struct {
	paymentService *payment.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *payment.Service) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// StripeWebhook handles POST /webhooks/stripe. The raw body is needed for
// signature verification, so it is read before any binding.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	if err := h.paymentService.HandleStripeWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
		respondWithError(c, err, "Failed to process webhook")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}
