package errors

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// upstreamMessageLimit caps how much of a non-JSON upstream body is echoed to clients.
const upstreamMessageLimit = 200

// MapHTTPError turns a non-auth upstream status into the client-facing error,
// preferring the upstream's own message when it sent one.
func MapHTTPError(statusCode int, upstreamBody []byte) *APIError {
	msg := extractUpstreamMessage(upstreamBody)

	switch statusCode {
	case http.StatusBadRequest:
		return New(statusCode, "invalid_request_error", "invalid_request_error", firstNonEmpty(msg, "Upstream rejected the request"))
	case http.StatusNotFound:
		return New(statusCode, "not_found", "invalid_request_error", firstNonEmpty(msg, "Upstream resource not found"))
	case http.StatusTooManyRequests:
		return New(statusCode, "rate_limit_exceeded", "rate_limit_error", firstNonEmpty(msg, "Upstream rate limit exceeded"))
	case http.StatusInternalServerError, http.StatusBadGateway:
		return New(http.StatusBadGateway, "upstream_error", "server_error", firstNonEmpty(msg, "Upstream server error"))
	case http.StatusServiceUnavailable:
		return New(statusCode, "service_unavailable", "server_error", firstNonEmpty(msg, "Upstream temporarily unavailable"))
	case http.StatusGatewayTimeout:
		return New(statusCode, "timeout", "timeout_error", firstNonEmpty(msg, "Upstream request timed out"))
	default:
		return New(http.StatusBadGateway, "upstream_error", "server_error", firstNonEmpty(msg, fmt.Sprintf("Upstream HTTP %d", statusCode)))
	}
}

// extractUpstreamMessage reads the error text from the shapes the chat service
// uses, falling back to a truncated raw body.
func extractUpstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "msg", "detail", "data.details"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
		return ""
	}
	msg := string(body)
	if len(msg) > upstreamMessageLimit {
		return msg[:upstreamMessageLimit] + "..."
	}
	return msg
}

func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
