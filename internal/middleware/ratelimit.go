package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"qwen2api-go/internal/config"
	common "qwen2api-go/internal/handlers/common"
	"qwen2api-go/internal/monitoring"
)

const (
	limiterKeyTTL    = 15 * time.Minute
	limiterSweepEach = 2 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ttlLimiterCache is a simple TTL map for per-key limiters with opportunistic sweeping.
type ttlLimiterCache struct {
	mu        sync.Mutex
	items     map[string]*limiterEntry
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newTTLLimiterCache(ttl time.Duration) *ttlLimiterCache {
	return &ttlLimiterCache{items: make(map[string]*limiterEntry), ttl: ttl, now: time.Now}
}

func (c *ttlLimiterCache) get(key string, makeFn func() *rate.Limiter) *rate.Limiter {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := makeFn()
	c.items[key] = &limiterEntry{lim: lim, lastSeen: now}
	SetRateLimitKeyGauge(len(c.items))
	if c.lastSweep.IsZero() || now.Sub(c.lastSweep) > limiterSweepEach {
		c.sweepLocked(now)
		c.lastSweep = now
	}
	return lim
}

func (c *ttlLimiterCache) sweepLocked(now time.Time) {
	for k, e := range c.items {
		if now.Sub(e.lastSeen) > c.ttl {
			delete(c.items, k)
		}
	}
	SetRateLimitKeyGauge(len(c.items))
}

func (c *ttlLimiterCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// RateLimiter limits per caller key (bearer token, else client IP) plus a global
// guard at five times the per-key budget.
func RateLimiter(rps int, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	cache := newTTLLimiterCache(limiterKeyTTL)
	global := rate.NewLimiter(rate.Limit(rps*5), burst*5)
	return func(c *gin.Context) {
		if !global.Allow() {
			rejectRateLimited(c, "global", "Global rate limit exceeded")
			return
		}
		key := extractAPIKey(c)
		if key == "" {
			key = c.ClientIP()
		}
		li := cache.get(key, func() *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) })
		if !li.Allow() {
			rejectRateLimited(c, "key", "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// RateLimiterFromConfig reads the limits on every request and rebuilds the
// limiter when a config reload changes them.
func RateLimiterFromConfig(current func() config.RateLimitConfig) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		active  config.RateLimitConfig
		handler gin.HandlerFunc
	)
	return func(c *gin.Context) {
		rl := current()
		if !rl.Enabled {
			c.Next()
			return
		}
		mu.Lock()
		if handler == nil || rl != active {
			active = rl
			handler = RateLimiter(rl.RPS, rl.Burst)
		}
		h := handler
		mu.Unlock()
		h(c)
	}
}

func rejectRateLimited(c *gin.Context, scope, message string) {
	monitoring.RateLimitedTotal.WithLabelValues(scope).Inc()
	common.AbortWithMessage(c, http.StatusTooManyRequests, "rate_limit_error", message)
}

func extractAPIKey(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return auth
}
