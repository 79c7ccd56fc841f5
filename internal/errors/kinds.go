package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind names one category of the adapter's error taxonomy.
type Kind string

const (
	KindNone                Kind = ""
	KindAuthMissing         Kind = "auth_missing"
	KindPoolExhausted       Kind = "pool_exhausted"
	KindUpstreamUnreachable Kind = "upstream_unreachable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindFrameDecode         Kind = "frame_decode_failure"
	KindTaskTimeout         Kind = "task_timeout"
	KindTaskFailed          Kind = "task_failed"
	KindInvalidRequest      Kind = "invalid_request"
	KindInternal            Kind = "internal"
)

var (
	ErrAuthMissing         = stderrors.New("authorization token missing")
	ErrPoolExhausted       = stderrors.New("no active upstream account available")
	ErrUpstreamUnreachable = stderrors.New("upstream unreachable")
	ErrUpstreamRejected    = stderrors.New("upstream rejected request")
	ErrFrameDecode         = stderrors.New("stream frame never became parseable")
	ErrTaskTimeout         = stderrors.New("media task timed out")
	ErrTaskFailed          = stderrors.New("media task failed")
	ErrInvalidRequest      = stderrors.New("invalid request")
)

// StatusCarrier is implemented by errors that know the upstream HTTP status and body.
type StatusCarrier interface {
	StatusCode() int
	ResponseBody() []byte
}

// KindOf classifies err against the taxonomy sentinels.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case stderrors.Is(err, ErrAuthMissing):
		return KindAuthMissing
	case stderrors.Is(err, ErrPoolExhausted):
		return KindPoolExhausted
	case stderrors.Is(err, ErrUpstreamUnreachable):
		return KindUpstreamUnreachable
	case stderrors.Is(err, ErrUpstreamRejected):
		return KindUpstreamRejected
	case stderrors.Is(err, ErrFrameDecode):
		return KindFrameDecode
	case stderrors.Is(err, ErrTaskTimeout):
		return KindTaskTimeout
	case stderrors.Is(err, ErrTaskFailed):
		return KindTaskFailed
	case stderrors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	}
	return KindInternal
}

// FromError converts a classified error into the client-facing APIError.
// Upstream rejections surface as a generic failure carrying the upstream status.
func FromError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	switch KindOf(err) {
	case KindAuthMissing:
		return New(http.StatusUnauthorized, "auth_missing", "authentication_error", "Authorization token is required")
	case KindPoolExhausted:
		return New(http.StatusServiceUnavailable, "pool_exhausted", "server_error", "No upstream account is currently available")
	case KindUpstreamUnreachable:
		return MapNetworkError(err)
	case KindUpstreamRejected:
		var sc StatusCarrier
		if stderrors.As(err, &sc) {
			status := sc.StatusCode()
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				// the caller's own key is fine; the upstream account is not
				return New(http.StatusBadGateway, "upstream_rejected", "server_error", "Upstream account rejected the request").
					WithDetails(map[string]interface{}{"upstream_status": status})
			}
			return MapHTTPError(status, sc.ResponseBody())
		}
		return New(http.StatusBadGateway, "upstream_error", "server_error", "Upstream request failed")
	case KindTaskTimeout:
		return New(http.StatusGatewayTimeout, "task_timeout", "timeout_error", "Media generation timed out, please retry")
	case KindTaskFailed:
		return New(http.StatusBadGateway, "task_failed", "server_error", "Media generation failed, please retry")
	case KindInvalidRequest:
		return New(http.StatusBadRequest, "invalid_request_error", "invalid_request_error", err.Error())
	}
	return New(http.StatusInternalServerError, "server_error", "server_error", "Internal server error")
}
