// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
)

// InvoiceRenderer renders the invoice of a paid order
type InvoiceRenderer interface {
	GenerateInvoice(o *order.Order) ([]byte, error)
	RenderInvoiceHTML(o *order.Order) ([]byte, error)
}

// InvoiceHandler handles invoice-related endpoints
type InvoiceHandler struct {
	orderService *order.Service
	renderer     InvoiceRenderer
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orderService *order.Service, renderer InvoiceRenderer) *InvoiceHandler {
	return &InvoiceHandler{
		orderService: orderService,
		renderer:     renderer,
	}
}

// GenerateInvoice handles GET /orders/:number/invoice and its admin twin.
// Customers only reach their own orders. ?format=html returns the HTML
// preview instead of the PDF.
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	o, err := h.orderService.InvoiceOrder(userID, c.Param("number"), middleware.IsAdminFromContext(c))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve order")
		return
	}

	if c.Query("format") == "html" {
		html, err := h.renderer.RenderInvoiceHTML(o)
		if err != nil {
			respondWithError(c, err, "Failed to render invoice")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
		return
	}

	pdfBytes, err := h.renderer.GenerateInvoice(o)
	if err != nil {
		respondWithError(c, err, "Failed to generate invoice")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", o.OrderNumber))
	c.Header("Content-Length", strconv.Itoa(len(pdfBytes)))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
