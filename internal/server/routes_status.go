package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/credential"
	mw "qwen2api-go/internal/middleware"
	"qwen2api-go/internal/runtime"
	usagestats "qwen2api-go/internal/stats"
	store "qwen2api-go/internal/storage"
)

const statusProbeTimeout = 3 * time.Second

// statusReport is the body of GET /stats.
type statusReport struct {
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Storage       string              `json:"storage,omitempty"`
	Pool          *credential.Stats   `json:"pool,omitempty"`
	Usage         *usagestats.Summary `json:"usage,omitempty"`
	Tasks         []runtime.Task      `json:"tasks,omitempty"`
	TaskStats     *runtime.TaskStats  `json:"task_stats,omitempty"`
}

func registerStatusRoutes(root *gin.RouterGroup, deps Dependencies) {
	started := time.Now()
	root.GET("/healthz", healthHandler(deps.Storage))
	root.GET("/metrics", mw.MetricsHandler)
	root.GET("/stats", statsHandler(deps, started))
}

func healthHandler(backend store.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		if backend == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), statusProbeTimeout)
		defer cancel()
		if err := backend.Health(ctx); err != nil {
			log.WithError(err).WithField("storage", store.Label(backend)).Warn("storage health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "degraded",
				"storage": store.Label(backend),
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": store.Label(backend)})
	}
}

func statsHandler(deps Dependencies, started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		setNoCacheHeaders(c)
		report := statusReport{
			Version:       constants.Version,
			UptimeSeconds: int64(time.Since(started).Seconds()),
		}
		if deps.Storage != nil {
			report.Storage = store.Label(deps.Storage)
		}
		if deps.Pool != nil {
			stats := deps.Pool.Stats()
			report.Pool = &stats
		}
		if deps.Usage != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), statusProbeTimeout)
			summary, err := deps.Usage.Summary(ctx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("usage summary unavailable")
			} else {
				report.Usage = &summary
			}
		}
		if deps.Tasks != nil {
			report.Tasks = deps.Tasks.ListTasks()
			ts := deps.Tasks.GetStats()
			report.TaskStats = &ts
		}
		c.JSON(http.StatusOK, report)
	}
}
