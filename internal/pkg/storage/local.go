package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/your-org/bookstore-backend/internal/config"
)

// LocalStorage keeps objects under a directory on disk
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates a disk-backed provider rooted at STORAGE_LOCAL_PATH
func NewLocalStorage(cfg *config.Config) *LocalStorage {
	baseURL := cfg.External.Storage.CDNBaseURL
	if baseURL == "" {
		baseURL = strings.TrimRight(cfg.App.BaseURL, "/") + "/uploads"
	}
	return &LocalStorage{
		root:    cfg.External.Storage.LocalPath,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (l *LocalStorage) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

// Save writes r to key, creating directories as needed
func (l *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	fullPath, err := l.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// Open returns a reader over key and its size
func (l *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	fullPath, err := l.path(key)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	return f, info.Size(), nil
}

// Delete removes key. Missing keys are not an error.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL is the public address of key
func (l *LocalStorage) URL(key string) string {
	return l.baseURL + "/" + strings.TrimPrefix(key, "/")
}
