package config

import (
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"
)

// applyEnv overlays environment variables on top of file values. Variable names
// match the ones existing deployments already export.
func applyEnv(cfg *Config) {
	setStringFromEnv("LISTEN_ADDRESS", func(v string) { cfg.Server.ListenAddress = v })
	setIntFromEnv("SERVICE_PORT", func(n int) { cfg.Server.Port = n })
	setStringFromEnv("API_PREFIX", func(v string) { cfg.Server.BasePath = v })
	if v := getenv("CORS_ORIGINS", ""); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v, ",")
	}

	setStringFromEnv("API_KEY", func(v string) { cfg.Auth.APIKey = v })
	if v := getenv("ACCOUNT_TOKENS", ""); v != "" {
		cfg.Auth.AccountTokens = splitAndTrim(v, ",")
	}
	setStringFromEnv("ACCOUNT_TOKENS_FILE", func(v string) { cfg.Auth.AccountTokensFile = v })

	setToggleFromEnv("OUTPUT_THINK", func(b bool) { cfg.Stream.OutputThink = b })
	setStringFromEnv("SEARCH_INFO_MODE", func(v string) { cfg.Stream.SearchInfoMode = strings.ToLower(v) })

	setStringFromEnv("UPSTREAM_BASE_URL", func(v string) { cfg.Upstream.BaseURL = v })
	setStringFromEnv("PROXY_URL", func(v string) { cfg.Upstream.ProxyURL = v })
	setStringFromEnv("UPSTREAM_COOKIE", func(v string) { cfg.Upstream.Cookie = v })
	if v := getenv("UPSTREAM_HEADERS", ""); v != "" {
		extra := map[string]string{}
		if err := json.Unmarshal([]byte(v), &extra); err != nil {
			log.WithError(err).Warn("ignoring UPSTREAM_HEADERS: not a JSON object")
		} else {
			if cfg.Upstream.Headers == nil {
				cfg.Upstream.Headers = map[string]string{}
			}
			for k, val := range extra {
				cfg.Upstream.Headers[k] = val
			}
		}
	}

	setIntFromEnv("IMAGE_POLL_INTERVAL_SEC", func(n int) { cfg.Tasks.ImageIntervalSec = n })
	setIntFromEnv("IMAGE_POLL_MAX_ATTEMPTS", func(n int) { cfg.Tasks.ImageMaxAttempts = n })
	setIntFromEnv("VIDEO_POLL_INTERVAL_SEC", func(n int) { cfg.Tasks.VideoIntervalSec = n })
	setIntFromEnv("VIDEO_POLL_MAX_ATTEMPTS", func(n int) { cfg.Tasks.VideoMaxAttempts = n })

	setToggleFromEnv("RATE_LIMIT_ENABLED", func(b bool) { cfg.RateLimit.Enabled = b })
	setIntFromEnv("RATE_LIMIT_RPS", func(n int) { cfg.RateLimit.RPS = n })
	setIntFromEnv("RATE_LIMIT_BURST", func(n int) { cfg.RateLimit.Burst = n })

	setStringFromEnv("STORAGE_BACKEND", func(v string) { cfg.Storage.Backend = strings.ToLower(v) })
	setStringFromEnv("REDIS_ADDR", func(v string) { cfg.Storage.RedisAddr = v })
	setStringFromEnv("REDIS_PASSWORD", func(v string) { cfg.Storage.RedisPassword = v })
	setIntFromEnv("REDIS_DB", func(n int) { cfg.Storage.RedisDB = n })
	setStringFromEnv("REDIS_PREFIX", func(v string) { cfg.Storage.RedisPrefix = v })
	setIntFromEnv("USAGE_RESET_HOURS", func(n int) { cfg.Storage.UsageResetHours = n })

	setToggleFromEnv("DEBUG", func(b bool) { cfg.Logging.Debug = b })
	setStringFromEnv("LOG_FILE", func(v string) { cfg.Logging.LogFile = v })
}
