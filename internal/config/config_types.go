package config

import (
	"net"
	"strconv"
)

// Config is the full runtime configuration. The config file may be YAML or JSON.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Stream    StreamConfig    `yaml:"stream" json:"stream"`
	Tasks     TasksConfig     `yaml:"tasks" json:"tasks"`
	Models    ModelsConfig    `yaml:"models" json:"models"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	ListenAddress string   `yaml:"listen_address" json:"listen_address"`
	Port          int      `yaml:"port" json:"port"`
	BasePath      string   `yaml:"base_path" json:"base_path"`
	CORSOrigins   []string `yaml:"cors_origins" json:"cors_origins"`
}

// UpstreamConfig describes how to reach the Qwen chat service.
type UpstreamConfig struct {
	BaseURL                  string            `yaml:"base_url" json:"base_url"`
	ProxyURL                 string            `yaml:"proxy_url" json:"proxy_url"`
	Headers                  map[string]string `yaml:"headers" json:"headers"`
	Cookie                   string            `yaml:"cookie" json:"cookie"`
	DialTimeoutSec           int               `yaml:"dial_timeout_sec" json:"dial_timeout_sec"`
	TLSHandshakeTimeoutSec   int               `yaml:"tls_handshake_timeout_sec" json:"tls_handshake_timeout_sec"`
	ResponseHeaderTimeoutSec int               `yaml:"response_header_timeout_sec" json:"response_header_timeout_sec"`

	// QuarantineStatuses lists upstream statuses that take a pooled account out of rotation.
	QuarantineStatuses []int `yaml:"quarantine_statuses" json:"quarantine_statuses"`
}

// AuthConfig pairs the shared client key with the pooled upstream accounts.
type AuthConfig struct {
	APIKey        string   `yaml:"api_key" json:"api_key"`
	AccountTokens []string `yaml:"account_tokens" json:"account_tokens"`

	// AccountTokensFile holds one token per line and is merged with AccountTokens at startup.
	AccountTokensFile string `yaml:"account_tokens_file" json:"account_tokens_file"`
}

type StreamConfig struct {
	OutputThink    bool   `yaml:"output_think" json:"output_think"`
	SearchInfoMode string `yaml:"search_info_mode" json:"search_info_mode"`
}

type TasksConfig struct {
	ImageIntervalSec int `yaml:"image_interval_sec" json:"image_interval_sec"`
	ImageMaxAttempts int `yaml:"image_max_attempts" json:"image_max_attempts"`
	VideoIntervalSec int `yaml:"video_interval_sec" json:"video_interval_sec"`
	VideoMaxAttempts int `yaml:"video_max_attempts" json:"video_max_attempts"`
}

type ModelsConfig struct {
	MediaModels []string `yaml:"media_models" json:"media_models"`
	CacheTTLSec int      `yaml:"cache_ttl_sec" json:"cache_ttl_sec"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	RPS     int  `yaml:"rps" json:"rps"`
	Burst   int  `yaml:"burst" json:"burst"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend" json:"backend"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`

	// UsageResetHours clears usage counters on that period; 0 keeps them forever.
	UsageResetHours int `yaml:"usage_reset_hours" json:"usage_reset_hours"`
}

type LoggingConfig struct {
	Debug   bool   `yaml:"debug" json:"debug"`
	LogFile string `yaml:"log_file" json:"log_file"`
}

// PoolEnabled reports whether requests carrying the shared key are served from the account pool.
func (c *Config) PoolEnabled() bool {
	return c.Auth.APIKey != "" && c.hasAccountTokens()
}

func (c *Config) hasAccountTokens() bool {
	return len(c.Auth.AccountTokens) > 0 || c.Auth.AccountTokensFile != ""
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.ListenAddress, strconv.Itoa(c.Server.Port))
}
