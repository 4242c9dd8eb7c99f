// internal/interfaces/http/handlers/upload.go
package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
)

// UploadHandler stores book files and covers
type UploadHandler struct {
	catalogService *catalog.Service
	store          storage.Provider
	config         *config.Config
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(catalogService *catalog.Service, store storage.Provider, cfg *config.Config) *UploadHandler {
	return &UploadHandler{
		catalogService: catalogService,
		store:          store,
		config:         cfg,
	}
}

// UploadBookFile handles POST /admin/books/:slug/file
func (h *UploadHandler) UploadBookFile(c *gin.Context) {
	header, ok := h.formFile(c, "file", h.config.Upload.MaxBookSize, h.config.Upload.BookExtensions)
	if !ok {
		return
	}

	format, err := catalog.ParseFormat(filepath.Ext(header.Filename))
	if err != nil {
		respondWithError(c, err, "Failed to upload file")
		return
	}

	key, ok := h.save(c, "books", header)
	if !ok {
		return
	}

	book, err := h.catalogService.AttachFile(c.Param("slug"), key, header.Size, format)
	if err != nil {
		h.discard(c, key)
		respondWithError(c, err, "Failed to attach file")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book file uploaded successfully",
		"data":    book,
	})
}

// UploadCover handles POST /admin/books/:slug/cover
func (h *UploadHandler) UploadCover(c *gin.Context) {
	header, ok := h.formFile(c, "image", h.config.Upload.MaxImageSize, h.config.Upload.ImageExtensions)
	if !ok {
		return
	}

	key, ok := h.save(c, "covers", header)
	if !ok {
		return
	}

	book, err := h.catalogService.AttachCover(c.Param("slug"), h.store.URL(key))
	if err != nil {
		h.discard(c, key)
		respondWithError(c, err, "Failed to attach cover")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cover uploaded successfully",
		"data":    book,
	})
}

// formFile reads one multipart file and checks its size and extension
func (h *UploadHandler) formFile(c *gin.Context, field string, maxSize int64, extensions []string) (*multipart.FileHeader, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("No %s provided", field),
		})
		return nil, false
	}

	if maxSize > 0 && header.Size > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File too large. Maximum size is %d MB", maxSize>>20),
		})
		return nil, false
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !allowedExtension(ext, extensions) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "File type not allowed",
			"details": "Allowed types: " + strings.Join(extensions, ", "),
		})
		return nil, false
	}

	return header, true
}

func (h *UploadHandler) save(c *gin.Context, prefix string, header *multipart.FileHeader) (string, bool) {
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read uploaded file",
		})
		return "", false
	}
	defer file.Close()

	key := storage.NewKey(prefix, header.Filename)
	if err := h.store.Save(c.Request.Context(), key, file, storage.ContentType(header.Filename)); err != nil {
		respondWithError(c, err, "Failed to store file")
		return "", false
	}
	return key, true
}

func (h *UploadHandler) discard(c *gin.Context, key string) {
	if err := h.store.Delete(c.Request.Context(), key); err != nil {
		logrus.WithField("key", key).WithError(err).Warn("Failed to remove orphaned upload")
	}
}

func allowedExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}
