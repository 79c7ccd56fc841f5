package server

import (
	"github.com/gin-gonic/gin"

	"qwen2api-go/internal/config"
	mw "qwen2api-go/internal/middleware"
)

// applyStandardEngineSettings installs the middleware chain shared by every route.
// The rate limiter reads its settings per request so reloads take effect.
func applyStandardEngineSettings(engine *gin.Engine, manager *config.Manager) {
	cfg := manager.Current()
	if !cfg.Logging.Debug && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	_ = engine.SetTrustedProxies(nil)

	engine.Use(mw.Recovery(), mw.RequestID(), mw.RequestLogger(), mw.Metrics())
	engine.Use(mw.CORS(cfg.Server.CORSOrigins...))
	engine.Use(mw.RateLimiterFromConfig(func() config.RateLimitConfig {
		return manager.Current().RateLimit
	}))
}
