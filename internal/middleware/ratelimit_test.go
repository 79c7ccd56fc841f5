package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"qwen2api-go/internal/config"
)

func serve(r *gin.Engine, bearer string) int {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func newLimitedRouter(h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h)
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	return r
}

func TestRateLimiter(t *testing.T) {
	t.Run("Allow requests within limit", func(t *testing.T) {
		r := newLimitedRouter(RateLimiter(10, 10))
		assert.Equal(t, http.StatusOK, serve(r, ""))
	})

	t.Run("Block requests exceeding limit", func(t *testing.T) {
		r := newLimitedRouter(RateLimiter(1, 1))
		assert.Equal(t, http.StatusOK, serve(r, ""))
		assert.Equal(t, http.StatusTooManyRequests, serve(r, ""))
	})

	t.Run("Keys are limited independently", func(t *testing.T) {
		r := newLimitedRouter(RateLimiter(1, 1))
		assert.Equal(t, http.StatusOK, serve(r, "key-a"))
		assert.Equal(t, http.StatusTooManyRequests, serve(r, "key-a"))
		assert.Equal(t, http.StatusOK, serve(r, "key-b"))
	})
}

func TestRateLimiterErrorEnvelope(t *testing.T) {
	r := newLimitedRouter(RateLimiter(1, 1))
	serve(r, "k")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"rate_limit_error"`)
}

func TestRateLimiterFromConfig(t *testing.T) {
	current := config.RateLimitConfig{Enabled: false, RPS: 1, Burst: 1}
	r := newLimitedRouter(RateLimiterFromConfig(func() config.RateLimitConfig { return current }))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(r, "k"))
	}

	current.Enabled = true
	assert.Equal(t, http.StatusOK, serve(r, "k"))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "k"))

	// a changed budget rebuilds the limiter with fresh buckets
	current.Burst = 3
	assert.Equal(t, http.StatusOK, serve(r, "k"))
	assert.Equal(t, http.StatusOK, serve(r, "k"))
}

func TestTTLLimiterCacheSweepsIdleKeys(t *testing.T) {
	cache := newTTLLimiterCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	mk := func() *rate.Limiter { return rate.NewLimiter(1, 1) }

	first := cache.get("a", mk)
	require.Same(t, first, cache.get("a", mk))
	cache.get("b", mk)
	require.Equal(t, 2, cache.size())

	now = now.Add(5 * time.Minute)
	cache.get("c", mk)
	assert.Equal(t, 1, cache.size())
}

func TestExtractAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, extractAPIKey(c))

	c.Request.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", extractAPIKey(c))
}
