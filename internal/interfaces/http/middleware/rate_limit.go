package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"golang.org/x/time/rate"
)

// WindowCounter counts hits in a fixed window. The redis client implements it.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit limits each client IP to RateLimitPerMinute requests. Requests
// are let through when the counter store is unavailable.
func RateLimit(cfg *config.Config, counter WindowCounter) gin.HandlerFunc {
	limit := int64(cfg.Security.RateLimitPerMinute)

	return func(c *gin.Context) {
		key := "rate_limit:" + c.ClientIP()

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		current, err := counter.IncrWindow(ctx, key, time.Minute)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		remaining := limit - current
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if current > limit {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// DownloadThrottle is an in-process token bucket per client IP for the
// download endpoint
type DownloadThrottle struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewDownloadThrottle creates a throttle allowing perMinute downloads per IP
func NewDownloadThrottle(perMinute, burst int) *DownloadThrottle {
	if burst < 1 {
		burst = 1
	}
	return &DownloadThrottle{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

// Allow reports whether ip may download now
func (t *DownloadThrottle) Allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	v, ok := t.limiters[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup drops limiters idle for longer than the idle period
func (t *DownloadThrottle) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.idle)
	for ip, v := range t.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(t.limiters, ip)
		}
	}
}

// Middleware rejects requests over the per-IP download rate
func (t *DownloadThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many downloads, please wait a moment",
			})
			return
		}
		c.Next()
	}
}
