package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, jwt *auth.JWTManager, userID uint, role string) http.Header {
	t.Helper()
	token, err := jwt.GenerateAccessToken(userID, "user@example.com", role)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func authRouter(jwt *auth.JWTManager) *gin.Engine {
	r := gin.New()
	ok := func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "admin": IsAdminFromContext(c)})
	}
	r.GET("/me", AuthMiddleware(jwt), ok)
	r.GET("/admin", AuthMiddleware(jwt), AdminMiddleware(), ok)
	r.GET("/public", OptionalAuthMiddleware(jwt), ok)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	jwt := auth.NewJWTManager(testutil.Config())
	r := authRouter(jwt)

	w := perform(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	refresh, err := jwt.GenerateRefreshToken(7, "user@example.com")
	require.NoError(t, err)
	w = perform(r, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer " + refresh}})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens are not access tokens")

	w = perform(r, http.MethodGet, "/me", bearer(t, jwt, 7, "customer"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"admin":false}`, w.Body.String())
}

func TestAdminMiddleware(t *testing.T) {
	jwt := auth.NewJWTManager(testutil.Config())
	r := authRouter(jwt)

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/admin", nil).Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin", bearer(t, jwt, 7, "customer")).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/admin", bearer(t, jwt, 1, "admin")).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/admin", bearer(t, jwt, 2, "staff")).Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	jwt := auth.NewJWTManager(testutil.Config())
	r := authRouter(jwt)

	w := perform(r, http.MethodGet, "/public", http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":0,"admin":false}`, w.Body.String())

	w = perform(r, http.MethodGet, "/public", bearer(t, jwt, 9, "customer"))
	assert.JSONEq(t, `{"user_id":9,"admin":false}`, w.Body.String())
}

type fakeCounter struct {
	hits map[string]int64
	err  error
}

func (f *fakeCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.hits[key]++
	return f.hits[key], nil
}

func TestRateLimit(t *testing.T) {
	cfg := testutil.Config()
	cfg.Security.RateLimitPerMinute = 2
	counter := &fakeCounter{hits: map[string]int64{}}

	r := gin.New()
	r.Use(RateLimit(cfg, counter))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)

	w = perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(testutil.Config(), &fakeCounter{err: errors.New("connection refused")}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)
}

func TestDownloadThrottle(t *testing.T) {
	throttle := NewDownloadThrottle(10, 2)

	assert.True(t, throttle.Allow("10.0.0.1"))
	assert.True(t, throttle.Allow("10.0.0.1"))
	assert.False(t, throttle.Allow("10.0.0.1"))
	assert.True(t, throttle.Allow("10.0.0.2"), "limits are per IP")

	throttle.idle = -time.Second
	throttle.Cleanup()
	assert.Empty(t, throttle.limiters)
}

func TestDownloadThrottle_Middleware(t *testing.T) {
	r := gin.New()
	r.GET("/d", NewDownloadThrottle(1, 1).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/d", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/d", nil).Code)
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"http://localhost:3000", "*.example.com"}

	assert.True(t, isOriginAllowed("http://localhost:3000", allowed))
	assert.True(t, isOriginAllowed("https://shop.example.com", allowed))
	assert.False(t, isOriginAllowed("https://badexample.com", allowed))
	assert.False(t, isOriginAllowed("http://localhost:4000", allowed))
	assert.True(t, isOriginAllowed("https://anything.test", []string{"*"}))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := testutil.Config()
	cfg.Security.CORSAllowedOrigins = []string{"http://localhost:3000"}
	cfg.Security.CORSAllowedMethods = []string{"GET", "POST"}
	cfg.Security.CORSAllowedHeaders = []string{"Authorization", "Content-Type"}

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/", http.Header{
		"Origin":                        {"http://localhost:3000"},
		"Access-Control-Request-Method": {"POST"},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := perform(r, http.MethodGet, "/", http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = perform(r, http.MethodGet, "/", nil)
	assert.Len(t, w.Body.String(), 36)
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("way more than eight bytes"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusGatewayTimeout, perform(r, http.MethodGet, "/slow", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/fast", nil).Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
