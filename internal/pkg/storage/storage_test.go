package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/config"
)

func newLocal(t *testing.T) *LocalStorage {
	cfg := &config.Config{}
	cfg.App.BaseURL = "http://localhost:8080/"
	cfg.External.Storage.LocalPath = t.TempDir()
	return NewLocalStorage(cfg)
}

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)

	require.NoError(t, store.Save(ctx, "books/2026/10/abc.epub", strings.NewReader("epub-bytes"), "application/epub+zip"))

	rc, size, err := store.Open(ctx, "books/2026/10/abc.epub")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "epub-bytes", string(data))
	assert.Equal(t, int64(len("epub-bytes")), size)

	require.NoError(t, store.Delete(ctx, "books/2026/10/abc.epub"))
	_, _, err = store.Open(ctx, "books/2026/10/abc.epub")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.NoError(t, store.Delete(ctx, "books/missing.pdf"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store := newLocal(t)

	err := store.Save(context.Background(), "../outside.pdf", strings.NewReader("x"), "application/pdf")
	assert.Error(t, err)

	_, _, err = store.Open(context.Background(), "books/../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalStorageURL(t *testing.T) {
	store := newLocal(t)
	assert.Equal(t, "http://localhost:8080/uploads/covers/a.png", store.URL("covers/a.png"))
}

func TestNewKey(t *testing.T) {
	key := NewKey("books", "Mi Libro.EPUB")
	assert.True(t, strings.HasPrefix(key, "books/"))
	assert.True(t, strings.HasSuffix(key, ".epub"))
	assert.NotEqual(t, key, NewKey("books", "Mi Libro.EPUB"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("a.PDF"))
	assert.Equal(t, "application/epub+zip", ContentType("a.epub"))
	assert.Equal(t, "image/jpeg", ContentType("cover.jpeg"))
	assert.Equal(t, "application/octet-stream", ContentType("notes.txt"))
}
