package openai

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/logging"
	mw "qwen2api-go/internal/middleware"
	"qwen2api-go/internal/models"
)

const modelOwner = "qwenlm"

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// modelCache holds the last upstream base-model list. Concurrent misses share
// one upstream call.
type modelCache struct {
	group   singleflight.Group
	mu      sync.Mutex
	ids     []string
	expires time.Time
	now     func() time.Time
}

func newModelCache() *modelCache {
	return &modelCache{now: time.Now}
}

func (m *modelCache) get() ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ids) == 0 || !m.now().Before(m.expires) {
		return nil, false
	}
	return m.ids, true
}

func (m *modelCache) store(ids []string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	m.expires = m.now().Add(ttl)
}

// GET /v1/models
func (h *Handler) ListModels(c *gin.Context) {
	cfg := h.cfg.Current()
	ids := models.ExpandAll(h.baseModels(c, cfg), mediaModels(cfg))

	created := h.now().Unix()
	data := make([]modelEntry, 0, len(ids))
	for _, id := range ids {
		data = append(data, modelEntry{ID: id, Object: "model", Created: created, OwnedBy: modelOwner})
	}
	c.JSON(http.StatusOK, modelList{Object: "list", Data: data})
}

// baseModels serves the cached upstream list, refreshing it when stale. Without a
// token or on upstream failure the built-in list is returned and nothing is cached.
func (h *Handler) baseModels(c *gin.Context, cfg *config.Config) []string {
	if ids, ok := h.models.get(); ok {
		return ids
	}
	token := mw.UpstreamToken(c)
	if token == "" {
		return models.DefaultBaseModels()
	}
	credentialID := mw.CredentialID(c)

	v, err, shared := h.models.group.Do("models", func() (any, error) {
		// followers must not lose the result when the leader's client disconnects
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), constants.UpstreamStatusTimeout)
		defer cancel()
		ids, err := h.client.ListModels(ctx, token)
		h.reportCredential(credentialID, err)
		if err != nil {
			return nil, err
		}
		h.models.store(ids, cacheTTL(cfg))
		return ids, nil
	})
	if err != nil {
		logging.WithReq(c, log.Fields{"shared": shared}).WithError(err).Warn("model list fetch failed, serving defaults")
		return models.DefaultBaseModels()
	}
	return v.([]string)
}

func cacheTTL(cfg *config.Config) time.Duration {
	if cfg.Models.CacheTTLSec > 0 {
		return time.Duration(cfg.Models.CacheTTLSec) * time.Second
	}
	return constants.ModelListCacheTTL
}

func mediaModels(cfg *config.Config) []string {
	if len(cfg.Models.MediaModels) > 0 {
		return cfg.Models.MediaModels
	}
	return models.DefaultMediaModels
}
