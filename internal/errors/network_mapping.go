package errors

import (
	"net/http"
	"strings"
)

// MapNetworkError maps network errors to standardized APIError objects.
func MapNetworkError(err error) *APIError {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return New(http.StatusGatewayTimeout, "timeout", "timeout_error", "Upstream request timeout")
	case strings.Contains(errMsg, "connection refused"):
		return New(http.StatusBadGateway, "connection_error", "server_error", "Upstream connection refused")
	case strings.Contains(errMsg, "EOF") || strings.Contains(errMsg, "connection reset"):
		return New(http.StatusBadGateway, "connection_error", "server_error", "Upstream connection error")
	case strings.Contains(errMsg, "no such host"):
		return New(http.StatusBadGateway, "dns_error", "server_error", "Upstream DNS resolution error")
	case strings.Contains(errMsg, "context canceled"):
		return New(http.StatusRequestTimeout, "request_canceled", "timeout_error", "Request was canceled")
	default:
		return New(http.StatusBadGateway, "network_error", "server_error", "Upstream unreachable")
	}
}
