package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwen2api-go/internal/monitoring"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		rid, exists := c.Get("request_id")
		if !exists || rid == "" {
			t.Error("Expected request_id to be set in context")
		}
		c.String(200, "OK")
	})

	t.Run("Generate request ID when not provided", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Len(t, w.Header().Get("X-Request-ID"), 32)
	})

	t.Run("Use provided request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "custom-request-id")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "custom-request-id", w.Header().Get("X-Request-ID"))
	})

	t.Run("Replace oversized request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Len(t, w.Header().Get("X-Request-ID"), 32)
	})

	t.Run("Generate unique IDs for different requests", func(t *testing.T) {
		w1 := httptest.NewRecorder()
		router.ServeHTTP(w1, httptest.NewRequest("GET", "/test", nil))
		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, httptest.NewRequest("GET", "/test", nil))
		assert.NotEqual(t, w1.Header().Get("X-Request-ID"), w2.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Recover from panic", func(t *testing.T) {
		var called bool
		router := gin.New()
		router.Use(RecoveryWithWriter(func(c *gin.Context, err any) { called = true }))
		router.GET("/panic", func(c *gin.Context) { panic("test panic") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.True(t, called)
		assert.Contains(t, w.Body.String(), "panic_recovered")
		assert.NotContains(t, w.Body.String(), "test panic")
	})

	t.Run("Normal request without panic", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery())
		router.GET("/normal", func(c *gin.Context) { c.String(200, "OK") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/normal", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Panic after streaming started keeps status", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery())
		router.GET("/stream", func(c *gin.Context) {
			c.String(http.StatusOK, "data: partial\n\n")
			panic("mid-stream")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/stream", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "data: partial\n\n", w.Body.String())
	})
}

func TestSafeGoAndSafeCall(t *testing.T) {
	done := make(chan struct{})
	var ran atomic.Bool
	SafeGo("test", func() {
		defer close(done)
		ran.Store(true)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
	assert.True(t, ran.Load())

	err := SafeCall(func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, SafeCall(func() error { return nil }))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/ok", func(c *gin.Context) {
		c.Set("model", "qwen-max-latest")
		c.String(200, "OK")
	})
	router.GET("/fail", func(c *gin.Context) { c.String(502, "bad gateway") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/fail", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics())
	router.GET("/metrics-test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) })

	counter := monitoring.HTTPRequestsTotal.WithLabelValues("GET", "/metrics-test", "2xx")
	before := testutil.ToFloat64(counter)
	unmatched := monitoring.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "4xx")
	unmatchedBefore := testutil.ToFloat64(unmatched)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics-test", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, unmatchedBefore+1, testutil.ToFloat64(unmatched))
	assert.Zero(t, testutil.ToFloat64(monitoring.HTTPInFlight))
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	monitoring.StreamChunksTotal.Add(0)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/metrics", nil)

	MetricsHandler(c)

	body := w.Body.String()
	require.Contains(t, body, "qwen2api_stream_chunks_total")
	require.Contains(t, body, "# HELP")
	require.Contains(t, body, "# TYPE")
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("wildcard by default", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS())
		r.GET("/v1/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "false", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("allow list echoes known origins only", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS("https://app.example.com"))
		r.GET("/v1/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS())
		r.POST("/v1/chat/completions", func(c *gin.Context) { t.Error("handler must not run for OPTIONS") })
		r.OPTIONS("/v1/chat/completions", func(c *gin.Context) { t.Error("handler must not run for OPTIONS") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
