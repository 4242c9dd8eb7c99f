// internal/interfaces/http/handlers/download.go
package handlers

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/delivery"
)

// DownloadHandler serves purchased book files
type DownloadHandler struct {
	deliveryService *delivery.Service
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(deliveryService *delivery.Service) *DownloadHandler {
	return &DownloadHandler{
		deliveryService: deliveryService,
	}
}

// GetDownloads handles GET /downloads
func (h *DownloadHandler) GetDownloads(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	deliveries, err := h.deliveryService.ListMine(userID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve downloads")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Downloads retrieved successfully",
		"data":    deliveries,
	})
}

// Download handles GET /downloads/:token. Each successful call uses up one
// download of the link.
func (h *DownloadHandler) Download(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, err := h.deliveryService.Download(c.Request.Context(), c.Param("token"), userID, c.ClientIP())
	if err != nil {
		respondWithError(c, err, "Failed to download file")
		return
	}
	defer file.Reader.Close()

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"delivery_id": file.Delivery.ID,
		"book_id":     file.Delivery.BookID,
		"downloads":   file.Delivery.DownloadCount,
	}).Info("Book download started")

	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file.Reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}),
		"Cache-Control":       "private, no-store",
	})
}
