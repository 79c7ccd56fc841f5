package logging

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "qwen2api-go/internal/errors"
)

// ErrorKind labels a request outcome for logs: "ok", the upstream status bucket
// for rejections, or the taxonomy kind otherwise.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	var sc apperrors.StatusCarrier
	if errors.As(err, &sc) {
		switch status := sc.StatusCode(); {
		case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
			return "upstream_" + strconv.Itoa(status)
		case status >= 500:
			return "upstream_5xx"
		case status >= 400:
			return "upstream_4xx"
		}
	}
	return string(apperrors.KindOf(err))
}
