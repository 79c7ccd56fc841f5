package qwen

import (
	"net/http"
	"strings"
)

// applyHeaders sets the configured browser-like headers, then the account token
// as both bearer and session cookie. The upstream checks both.
func (c *Client) applyHeaders(req *http.Request, token string) {
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	cookie := "token=" + token
	if extra := strings.Trim(strings.TrimSpace(c.cfg.Cookie), ";"); extra != "" {
		cookie = cookie + ";" + extra
	}
	req.Header.Set("Cookie", cookie)
}
