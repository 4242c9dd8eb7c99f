package delivery

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

var deliveryColumns = []string{"id", "order_id", "book_id", "user_id", "token", "expires_at", "max_downloads", "download_count"}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, storage.Provider) {
	db, mock := testutil.NewMockDB(t)
	cfg := testutil.Config()
	cfg.External.Storage.LocalPath = t.TempDir()
	store := storage.NewLocalStorage(cfg)
	return NewService(db, cfg, store), mock, store
}

func expectDelivery(mock sqlmock.Sqlmock, userID uint, count int) {
	mock.ExpectQuery(`SELECT \* FROM "digital_deliveries" WHERE token = \$1`).
		WillReturnRows(sqlmock.NewRows(deliveryColumns).
			AddRow(11, 4, 7, userID, "tok-123", time.Now().Add(24*time.Hour), 3, count))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "format", "file_key"}).
			AddRow(7, "pedro-paramo", "epub", "books/2026/10/pp.epub"))
}

func TestIsValidAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	d := DigitalDelivery{ExpiresAt: now.Add(time.Hour), MaxDownloads: 3, DownloadCount: 2}
	assert.True(t, d.IsValidAt(now))

	d.DownloadCount = 3
	assert.False(t, d.IsValidAt(now), "at the download cap")

	d.DownloadCount = 0
	d.ExpiresAt = now
	assert.False(t, d.IsValidAt(now), "at expiry")
	assert.False(t, d.IsValidAt(now.Add(time.Minute)), "past expiry")
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	d := DigitalDelivery{ExpiresAt: now.Add(72*time.Hour + time.Hour)}
	assert.Equal(t, 3, d.DaysRemaining(now))

	d.ExpiresAt = now.Add(23 * time.Hour)
	assert.Equal(t, 0, d.DaysRemaining(now))

	d.ExpiresAt = now.Add(-48 * time.Hour)
	assert.Equal(t, 0, d.DaysRemaining(now))
}

func TestRemainingDownloadsAndURL(t *testing.T) {
	d := DigitalDelivery{MaxDownloads: 3, DownloadCount: 1, Token: "abc"}
	assert.Equal(t, 2, d.RemainingDownloads())
	assert.Equal(t, "https://libros.example/api/v1/downloads/abc", d.DownloadURL("https://libros.example/"))

	d.DownloadCount = 5
	assert.Equal(t, 0, d.RemainingDownloads())
}

func TestBeforeCreateAssignsToken(t *testing.T) {
	d := &DigitalDelivery{}
	require.NoError(t, d.BeforeCreate(nil))
	assert.Len(t, d.Token, 36)
}

func TestConsume_UnknownToken(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "digital_deliveries" WHERE token = \$1`).
		WillReturnRows(sqlmock.NewRows(deliveryColumns))

	_, err := svc.Consume("nope", 5, "10.0.0.1")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}

func TestConsume_OtherUser(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectDelivery(mock, 9, 0)

	_, err := svc.Consume("tok-123", 5, "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestConsume_ExhaustedOrExpired(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectDelivery(mock, 5, 3)

	mock.ExpectExec(`UPDATE "digital_deliveries" SET "download_count"=download_count \+ 1,"first_download_at"=COALESCE\(first_download_at, \$1\),"last_download_at"=\$2,"last_download_ip"=\$3,"updated_at"=\$4 WHERE id = \$5 AND download_count < max_downloads AND expires_at > \$6`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.Consume("tok-123", 5, "10.0.0.1")
	assert.ErrorIs(t, err, ErrDownloadUnavailable)
}

func TestDownload_StreamsFileAndCounts(t *testing.T) {
	svc, mock, store := newTestService(t)
	require.NoError(t, store.Save(context.Background(), "books/2026/10/pp.epub", strings.NewReader("contenido"), "application/epub+zip"))

	expectDelivery(mock, 5, 1)
	mock.ExpectExec(`UPDATE "digital_deliveries" SET "download_count"=download_count \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	file, err := svc.Download(context.Background(), "tok-123", 5, "10.0.0.1")
	require.NoError(t, err)
	defer file.Reader.Close()

	body, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	assert.Equal(t, "contenido", string(body))
	assert.Equal(t, "pedro-paramo.epub", file.Filename)
	assert.Equal(t, "application/epub+zip", file.ContentType)
	assert.Equal(t, 2, file.Delivery.DownloadCount)
	assert.NotNil(t, file.Delivery.FirstDownloadAt)
}

func TestDownload_MissingFileKeepsDownload(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectDelivery(mock, 5, 2)

	_, err := svc.Download(context.Background(), "tok-123", 5, "10.0.0.1")
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestDownload_ExhaustedClosesFile(t *testing.T) {
	svc, mock, store := newTestService(t)
	require.NoError(t, store.Save(context.Background(), "books/2026/10/pp.epub", strings.NewReader("contenido"), "application/epub+zip"))

	expectDelivery(mock, 5, 3)
	mock.ExpectExec(`UPDATE "digital_deliveries" SET "download_count"=download_count \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.Download(context.Background(), "tok-123", 5, "10.0.0.1")
	assert.ErrorIs(t, err, ErrDownloadUnavailable)
}

func TestIssue_IgnoresExistingPairs(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	expires := time.Now().Add(365 * 24 * time.Hour)

	mock.ExpectQuery(`INSERT INTO "digital_deliveries" .* ON CONFLICT \("order_id","book_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "digital_deliveries" WHERE order_id = \$1`).
		WillReturnRows(sqlmock.NewRows(deliveryColumns).
			AddRow(1, 4, 7, 5, "t1", expires, 3, 0).
			AddRow(2, 4, 8, 5, "t2", expires, 3, 0))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" IN \(\$1,\$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(7, "a").AddRow(8, "b"))

	issued, err := Issue(db, 4, 5, []uint{7, 8, 7}, expires, 3)
	require.NoError(t, err)
	require.Len(t, issued, 2)
	assert.Equal(t, "a", issued[0].Book.Slug)
}

func TestRevoke(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectExec(`UPDATE "digital_deliveries" SET "expires_at"=\$1,"updated_at"=\$2 WHERE order_id = \$3 AND expires_at > \$4`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := Revoke(db, 4, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
