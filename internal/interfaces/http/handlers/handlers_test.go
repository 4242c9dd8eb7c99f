package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/domain/delivery"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/email"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
	"github.com/your-org/bookstore-backend/internal/testutil"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopNotifier struct{}

func (noopNotifier) SendOrderConfirmationEmail(context.Context, email.OrderConfirmationData) error {
	return nil
}

func (noopNotifier) SendOrderStatusUpdateEmail(context.Context, email.OrderStatusUpdateData) error {
	return nil
}

// asUser stands in for the auth middleware
func asUser(id uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
	}
}

func perform(r http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{user.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{delivery.ErrNotOwner, http.StatusForbidden},
		{delivery.ErrDownloadUnavailable, http.StatusForbidden},
		{payment.ErrGatewayFailure, http.StatusBadGateway},
		{catalog.ErrBookNotFound, http.StatusNotFound},
		{order.ErrOrderNotFound, http.StatusNotFound},
		{storage.ErrObjectNotFound, http.StatusNotFound},
		{user.ErrEmailTaken, http.StatusConflict},
		{catalog.ErrDuplicateReview, http.StatusConflict},
		{catalog.ErrBookPurchased, http.StatusConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict},
		{gorm.ErrForeignKeyViolated, http.StatusConflict},
		{cart.ErrSessionIDRequired, http.StatusBadRequest},
		{order.ErrInvalidTransition, http.StatusBadRequest},
		{payment.ErrInvalidSignature, http.StatusBadRequest},
		{fmt.Errorf("%w: too short", auth.ErrWeakPassword), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondWithError_HidesInternalErrors(t *testing.T) {
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		respondWithError(c, errors.New("pq: relation does not exist"), "Failed to load thing")
	})
	r.GET("/missing", func(c *gin.Context) {
		respondWithError(c, catalog.ErrBookNotFound, "Failed to load book")
	})

	w := perform(r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to load thing"}`, w.Body.String())

	w = perform(r, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"book not found"}`, w.Body.String())
}

func TestUintParam(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	assert.JSONEq(t, `{"id":42}`, perform(r, http.MethodGet, "/items/42", "", nil).Body.String())
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/items/0", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/items/abc", "", nil).Code)
}

func TestGetCart_GuestNeedsSessionHeader(t *testing.T) {
	db, _ := testutil.NewMockDB(t)
	h := NewCartHandler(cart.NewService(db, nil, testutil.Config()))

	r := gin.New()
	r.GET("/cart", h.GetCart)
	r.GET("/cart/count", h.GetCartCount)

	w := perform(r, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), cart.ErrSessionIDRequired.Error())

	w = perform(r, http.MethodGet, "/cart/count", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func newPaymentRouter(t *testing.T) *gin.Engine {
	db, _ := testutil.NewMockDB(t)
	cfg := testutil.Config()
	orders := order.NewService(db, cfg, noopNotifier{})
	h := NewPaymentHandler(payment.NewService(db, cfg, orders))

	r := gin.New()
	r.POST("/webhooks/stripe", h.StripeWebhook)
	return r
}

func TestStripeWebhook(t *testing.T) {
	secret := testutil.Config().External.Stripe.WebhookSecret

	t.Run("bad signature", func(t *testing.T) {
		r := newPaymentRouter(t)
		body := `{"id":"evt_1","type":"checkout.session.completed"}`
		header := http.Header{"Stripe-Signature": {payment.SignatureHeader([]byte(body), "whsec_wrong", time.Now())}}

		w := perform(r, http.MethodPost, "/webhooks/stripe", body, header)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		r := newPaymentRouter(t)
		w := perform(r, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("signed garbage", func(t *testing.T) {
		r := newPaymentRouter(t)
		body := `not json`
		header := http.Header{"Stripe-Signature": {payment.SignatureHeader([]byte(body), secret, time.Now())}}

		w := perform(r, http.MethodPost, "/webhooks/stripe", body, header)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unhandled event is acknowledged", func(t *testing.T) {
		r := newPaymentRouter(t)
		body := `{"id":"evt_2","type":"customer.created","data":{"object":{}}}`
		header := http.Header{"Stripe-Signature": {payment.SignatureHeader([]byte(body), secret, time.Now())}}

		w := perform(r, http.MethodPost, "/webhooks/stripe", body, header)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"success"}`, w.Body.String())
	})
}

var deliveryColumns = []string{"id", "order_id", "book_id", "user_id", "token", "expires_at", "max_downloads", "download_count"}

func newDownloadRouter(t *testing.T, userID uint) (*gin.Engine, sqlmock.Sqlmock, storage.Provider) {
	db, mock := testutil.NewMockDB(t)
	cfg := testutil.Config()
	cfg.External.Storage.LocalPath = t.TempDir()
	store := storage.NewLocalStorage(cfg)
	h := NewDownloadHandler(delivery.NewService(db, cfg, store))

	r := gin.New()
	if userID != 0 {
		r.Use(asUser(userID))
	}
	r.GET("/downloads/:token", h.Download)
	return r, mock, store
}

func expectDelivery(mock sqlmock.Sqlmock, ownerID uint, count int) {
	mock.ExpectQuery(`SELECT \* FROM "digital_deliveries" WHERE token = \$1`).
		WillReturnRows(sqlmock.NewRows(deliveryColumns).
			AddRow(11, 4, 7, ownerID, "tok-123", time.Now().Add(24*time.Hour), 3, count))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "format", "file_key"}).
			AddRow(7, "pedro-paramo", "epub", "books/2026/10/pp.epub"))
}

func TestDownload(t *testing.T) {
	t.Run("requires a user", func(t *testing.T) {
		r, _, _ := newDownloadRouter(t, 0)
		assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/downloads/tok-123", "", nil).Code)
	})

	t.Run("other user's link", func(t *testing.T) {
		r, mock, _ := newDownloadRouter(t, 5)
		expectDelivery(mock, 9, 0)

		assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/downloads/tok-123", "", nil).Code)
	})

	t.Run("exhausted link", func(t *testing.T) {
		r, mock, store := newDownloadRouter(t, 5)
		require.NoError(t, store.Save(context.Background(), "books/2026/10/pp.epub", strings.NewReader("contenido"), "application/epub+zip"))
		expectDelivery(mock, 5, 3)
		mock.ExpectExec(`UPDATE "digital_deliveries" SET "download_count"=download_count \+ 1`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/downloads/tok-123", "", nil).Code)
	})

	t.Run("missing file keeps the download", func(t *testing.T) {
		r, mock, _ := newDownloadRouter(t, 5)
		expectDelivery(mock, 5, 2)

		assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/downloads/tok-123", "", nil).Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		r, mock, _ := newDownloadRouter(t, 5)
		mock.ExpectQuery(`SELECT \* FROM "digital_deliveries" WHERE token = \$1`).
			WillReturnRows(sqlmock.NewRows(deliveryColumns))

		assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/downloads/nope", "", nil).Code)
	})

	t.Run("streams the file", func(t *testing.T) {
		r, mock, store := newDownloadRouter(t, 5)
		require.NoError(t, store.Save(context.Background(), "books/2026/10/pp.epub", strings.NewReader("contenido"), "application/epub+zip"))
		expectDelivery(mock, 5, 1)
		mock.ExpectExec(`UPDATE "digital_deliveries" SET "download_count"=download_count \+ 1`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := perform(r, http.MethodGet, "/downloads/tok-123", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "contenido", w.Body.String())
		assert.Equal(t, "application/epub+zip", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=pedro-paramo.epub", w.Header().Get("Content-Disposition"))
		assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
	})
}
