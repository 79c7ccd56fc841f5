package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type rejected struct {
	status int
	body   []byte
}

func (r *rejected) Error() string        { return fmt.Sprintf("upstream status %d", r.status) }
func (r *rejected) Unwrap() error        { return ErrUpstreamRejected }
func (r *rejected) StatusCode() int      { return r.status }
func (r *rejected) ResponseBody() []byte { return r.body }

func TestKindOf(t *testing.T) {
	cases := map[Kind]error{
		KindNone:                nil,
		KindAuthMissing:         ErrAuthMissing,
		KindPoolExhausted:       fmt.Errorf("acquire: %w", ErrPoolExhausted),
		KindUpstreamUnreachable: fmt.Errorf("dial: %w", ErrUpstreamUnreachable),
		KindUpstreamRejected:    &rejected{status: 500},
		KindTaskTimeout:         ErrTaskTimeout,
		KindInternal:            fmt.Errorf("boom"),
	}
	for want, err := range cases {
		require.Equal(t, want, KindOf(err), "err=%v", err)
	}
}

func TestFromErrorStatuses(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, FromError(ErrAuthMissing).HTTPStatus)
	require.Equal(t, http.StatusServiceUnavailable, FromError(ErrPoolExhausted).HTTPStatus)
	require.Equal(t, http.StatusGatewayTimeout, FromError(ErrTaskTimeout).HTTPStatus)
	require.Contains(t, FromError(ErrTaskTimeout).Message, "please retry")

	authRejected := FromError(&rejected{status: http.StatusUnauthorized, body: []byte(`{"detail":"expired"}`)})
	require.Equal(t, http.StatusBadGateway, authRejected.HTTPStatus)
	require.Equal(t, http.StatusUnauthorized, authRejected.Details["upstream_status"])

	limited := FromError(&rejected{status: http.StatusTooManyRequests, body: []byte(`{"error":{"message":"slow down"}}`)})
	require.Equal(t, http.StatusTooManyRequests, limited.HTTPStatus)
	require.Equal(t, "slow down", limited.Message)

	require.Equal(t, http.StatusInternalServerError, FromError(fmt.Errorf("unexpected")).HTTPStatus)
}

func TestAPIErrorPassesThrough(t *testing.T) {
	custom := New(http.StatusBadRequest, "bad_model", "invalid_request_error", "unknown model")
	wrapped := fmt.Errorf("parse: %w", custom)
	require.Same(t, custom, FromError(wrapped))

	payload, err := custom.ToJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"error":{"message":"unknown model","type":"invalid_request_error","code":"bad_model"}}`, string(payload))
}

func TestMapHTTPErrorMessages(t *testing.T) {
	detail := MapHTTPError(http.StatusBadRequest, []byte(`{"success":false,"detail":"prompt too long"}`))
	require.Equal(t, http.StatusBadRequest, detail.HTTPStatus)
	require.Equal(t, "prompt too long", detail.Message)

	serverErr := MapHTTPError(http.StatusInternalServerError, nil)
	require.Equal(t, http.StatusBadGateway, serverErr.HTTPStatus)
	require.Equal(t, "upstream_error", serverErr.Code)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	truncated := MapHTTPError(http.StatusServiceUnavailable, long)
	require.Len(t, truncated.Message, upstreamMessageLimit+3)

	silentJSON := MapHTTPError(http.StatusTeapot, []byte(`{"code":1}`))
	require.Equal(t, http.StatusBadGateway, silentJSON.HTTPStatus)
	require.Equal(t, "Upstream HTTP 418", silentJSON.Message)
}
