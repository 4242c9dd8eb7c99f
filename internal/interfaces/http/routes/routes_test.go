package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, *auth.JWTManager) {
	db, _ := testutil.NewMockDB(t)
	cfg := testutil.Config()
	cfg.External.Storage.LocalPath = t.TempDir()

	jwt := auth.NewJWTManager(cfg)
	deps := &Dependencies{
		DB:       db,
		Config:   cfg,
		JWT:      jwt,
		Throttle: middleware.NewDownloadThrottle(10, 3),
	}

	r := gin.New()
	SetupRoutes(r.Group("/api/v1"), NewHandlers(deps), jwt, deps.Throttle)
	return r, jwt
}

func TestRouteProtection(t *testing.T) {
	r, jwt := newRouter(t)

	customer, err := jwt.GenerateAccessToken(7, "reader@example.com", "customer")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"orders need a user", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized},
		{"checkout needs a user", http.MethodPost, "/api/v1/checkout", "", http.StatusUnauthorized},
		{"downloads need a user", http.MethodGet, "/api/v1/downloads", "", http.StatusUnauthorized},
		{"wishlist needs a user", http.MethodGet, "/api/v1/wishlist", "", http.StatusUnauthorized},
		{"reviews need a user", http.MethodPost, "/api/v1/books/some-book/reviews", "", http.StatusUnauthorized},
		{"admin needs a user", http.MethodGet, "/api/v1/admin/dashboard", "", http.StatusUnauthorized},
		{"admin rejects customers", http.MethodGet, "/api/v1/admin/dashboard", customer, http.StatusForbidden},
		{"admin books reject customers", http.MethodPost, "/api/v1/admin/books", customer, http.StatusForbidden},
		{"guest cart needs a session", http.MethodGet, "/api/v1/cart", "", http.StatusBadRequest},
		{"cart count needs a user", http.MethodGet, "/api/v1/cart/count", "", http.StatusUnauthorized},
		{"webhook needs a signature", http.MethodPost, "/api/v1/webhooks/stripe", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
