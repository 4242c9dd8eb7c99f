// Package storage keeps book files and cover images on local disk or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/config"
)

// ErrObjectNotFound is returned when a key does not exist
var ErrObjectNotFound = errors.New("stored file not found")

// Provider stores and retrieves objects by key
type Provider interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the provider selected by STORAGE_PROVIDER
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.External.Storage.Provider {
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "local", "":
		return NewLocalStorage(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.External.Storage.Provider)
	}
}

// NewKey returns a collision-free key under prefix keeping the file extension,
// e.g. "books/2026/10/3f1c...e2.epub".
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	now := time.Now().UTC()
	return path.Join(prefix, now.Format("2006"), now.Format("01"), uuid.New().String()+ext)
}

// ContentType guesses the MIME type of a stored file from its extension
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".epub":
		return "application/epub+zip"
	case ".mobi":
		return "application/x-mobipocket-ebook"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return cleaned, nil
}
