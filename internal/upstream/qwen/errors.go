package qwen

import (
	"fmt"
	"net/http"

	apperrors "qwen2api-go/internal/errors"
)

// RejectedError is a non-2xx (or unusable 2xx) upstream answer.
type RejectedError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
}

func (e *RejectedError) Unwrap() error { return apperrors.ErrUpstreamRejected }

func (e *RejectedError) StatusCode() int { return e.Status }

func (e *RejectedError) ResponseBody() []byte { return e.Body }

// IsAuthStatus reports whether status means the account itself was refused.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func unreachable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrUpstreamUnreachable, err)
}
