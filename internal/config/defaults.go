package config

import (
	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/models"
)

const (
	DefaultPort           = 3000
	DefaultUpstreamURL    = "https://chat.qwenlm.ai"
	SearchInfoModeTable   = "table"
	SearchInfoModeText    = "text"
	DefaultStorageBackend = "memory"
)

// DefaultUpstreamHeaders mimic a desktop browser session; the upstream rejects bare clients.
func DefaultUpstreamHeaders() map[string]string {
	return map[string]string{
		"Accept":             "*/*",
		"Accept-Language":    "zh-CN,zh;q=0.9,en;q=0.8",
		"Content-Type":       "application/json",
		"Origin":             "https://chat.qwenlm.ai",
		"Referer":            "https://chat.qwenlm.ai/",
		"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"sec-ch-ua":          `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
	}
}

// Defaults returns a configuration with every field populated.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Upstream: UpstreamConfig{
			BaseURL:            DefaultUpstreamURL,
			Headers:            DefaultUpstreamHeaders(),
			QuarantineStatuses: []int{401, 403},
		},
		Stream: StreamConfig{
			OutputThink:    true,
			SearchInfoMode: SearchInfoModeTable,
		},
		Tasks: TasksConfig{
			ImageIntervalSec: int(constants.ImagePollInterval.Seconds()),
			ImageMaxAttempts: constants.ImagePollMaxAttempts,
			VideoIntervalSec: int(constants.VideoPollInterval.Seconds()),
			VideoMaxAttempts: constants.VideoPollMaxAttempts,
		},
		Models: ModelsConfig{
			MediaModels: append([]string(nil), models.DefaultMediaModels...),
			CacheTTLSec: int(constants.ModelListCacheTTL.Seconds()),
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Storage: StorageConfig{
			Backend:     DefaultStorageBackend,
			RedisPrefix: "qwen2api:",
		},
	}
}
