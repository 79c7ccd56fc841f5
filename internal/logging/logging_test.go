package logging

import (
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"qwen2api-go/internal/config"
	apperrors "qwen2api-go/internal/errors"
)

type statusErr int

func (s statusErr) Error() string        { return "upstream status" }
func (s statusErr) StatusCode() int      { return int(s) }
func (s statusErr) ResponseBody() []byte { return nil }

func TestErrorKind(t *testing.T) {
	require.Equal(t, "ok", ErrorKind(nil))
	require.Equal(t, "upstream_401", ErrorKind(statusErr(401)))
	require.Equal(t, "upstream_429", ErrorKind(fmt.Errorf("list: %w", statusErr(429))))
	require.Equal(t, "upstream_5xx", ErrorKind(statusErr(502)))
	require.Equal(t, "upstream_4xx", ErrorKind(statusErr(404)))
	require.Equal(t, string(apperrors.KindUpstreamUnreachable), ErrorKind(fmt.Errorf("dial: %w", apperrors.ErrUpstreamUnreachable)))
	require.Equal(t, string(apperrors.KindTaskTimeout), ErrorKind(apperrors.ErrTaskTimeout))
}

func TestSetupLevels(t *testing.T) {
	t.Cleanup(func() { _ = Setup(config.LoggingConfig{}) })

	require.NoError(t, Setup(config.LoggingConfig{Debug: true}))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	logFile := filepath.Join(t.TempDir(), "logs", "qwen2api.log")
	require.NoError(t, Setup(config.LoggingConfig{LogFile: logFile}))
	require.Equal(t, log.InfoLevel, log.GetLevel())
	require.FileExists(t, logFile)
}

func TestWithReqFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/v1/chat/completions", nil)
	c.Set("request_id", "rid-1")
	c.Set("credential_id", "account-2")

	entry := WithReq(c, log.Fields{"model": "qwen-max-latest"})
	require.Equal(t, "rid-1", entry.Data["request_id"])
	require.Equal(t, "account-2", entry.Data["account"])
	require.Equal(t, "/v1/chat/completions", entry.Data["path"])
	require.Equal(t, "qwen-max-latest", entry.Data["model"])
}
