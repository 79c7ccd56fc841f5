package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks cross-field constraints. Pool dispatch needs both the shared key
// and at least one account token; either one alone is a deployment mistake.
func (c *Config) Validate() error {
	var errs []error
	hasKey := c.Auth.APIKey != ""
	hasTokens := c.hasAccountTokens()
	if hasKey != hasTokens {
		errs = append(errs, errors.New("ACCOUNT_TOKENS and API_KEY must be configured together"))
	}
	switch c.Stream.SearchInfoMode {
	case SearchInfoModeTable, SearchInfoModeText:
	default:
		errs = append(errs, fmt.Errorf("search_info_mode must be %q or %q, got %q", SearchInfoModeTable, SearchInfoModeText, c.Stream.SearchInfoMode))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid upstream base_url %q", c.Upstream.BaseURL))
	}
	if c.Tasks.ImageIntervalSec <= 0 || c.Tasks.ImageMaxAttempts <= 0 ||
		c.Tasks.VideoIntervalSec <= 0 || c.Tasks.VideoMaxAttempts <= 0 {
		errs = append(errs, errors.New("task poll intervals and attempts must be positive"))
	}
	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("redis storage requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}
