package common

import (
	"context"

	"qwen2api-go/internal/constants"
)

// WithUpstreamTimeout returns a context with standard upstream timeouts.
// Media requests poll for minutes and are bounded by their poll policy instead.
func WithUpstreamTimeout(parent context.Context, stream bool) (context.Context, context.CancelFunc) {
	timeout := constants.UpstreamGenerateTimeout
	if stream {
		timeout = constants.UpstreamStreamTimeout
	}
	return context.WithTimeout(parent, timeout)
}
