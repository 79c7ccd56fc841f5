package openai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/credential"
	mw "qwen2api-go/internal/middleware"
	"qwen2api-go/internal/tasks"
	"qwen2api-go/internal/upstream/qwen"
)

const testSharedKey = "sk-shared"

type stubClient struct {
	mu sync.Mutex

	completeFunc   func(ctx context.Context, body []byte, token string) ([]byte, error)
	streamFunc     func(ctx context.Context, body []byte, token string) (io.ReadCloser, error)
	submitFunc     func(ctx context.Context, body []byte, token, size string) (string, error)
	statusFunc     func(ctx context.Context, taskID, token string) (qwen.TaskStatus, error)
	listModelsFunc func(ctx context.Context, token string) ([]string, error)

	bodies []string
	tokens []string
	sizes  []string
}

func (s *stubClient) record(body []byte, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, string(body))
	s.tokens = append(s.tokens, token)
}

func (s *stubClient) lastBody() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bodies) == 0 {
		return ""
	}
	return s.bodies[len(s.bodies)-1]
}

func (s *stubClient) Complete(ctx context.Context, body []byte, token string) ([]byte, error) {
	s.record(body, token)
	if s.completeFunc != nil {
		return s.completeFunc(ctx, body, token)
	}
	return nil, errors.New("complete not implemented")
}

func (s *stubClient) Stream(ctx context.Context, body []byte, token string) (io.ReadCloser, error) {
	s.record(body, token)
	if s.streamFunc != nil {
		return s.streamFunc(ctx, body, token)
	}
	return nil, errors.New("stream not implemented")
}

func (s *stubClient) SubmitMediaTask(ctx context.Context, body []byte, token, size string) (string, error) {
	s.record(body, token)
	s.mu.Lock()
	s.sizes = append(s.sizes, size)
	s.mu.Unlock()
	if s.submitFunc != nil {
		return s.submitFunc(ctx, body, token, size)
	}
	return "", errors.New("submit not implemented")
}

func (s *stubClient) TaskStatus(ctx context.Context, taskID, token string) (qwen.TaskStatus, error) {
	if s.statusFunc != nil {
		return s.statusFunc(ctx, taskID, token)
	}
	return qwen.TaskStatus{}, errors.New("status not implemented")
}

func (s *stubClient) ListModels(ctx context.Context, token string) ([]string, error) {
	if s.listModelsFunc != nil {
		return s.listModelsFunc(ctx, token)
	}
	return nil, errors.New("list models not implemented")
}

type stubUploader struct {
	handle string
	err    error
	urls   []string
}

func (u *stubUploader) UploadImage(_ context.Context, imageURL, _ string) (string, error) {
	u.urls = append(u.urls, imageURL)
	return u.handle, u.err
}

// instantClock fires every poll timer immediately.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (instantClock) NewTimer(time.Duration) tasks.Timer {
	ch := make(chan time.Time, 1)
	ch <- time.Unix(1700000000, 0)
	return firedTimer(ch)
}

type firedTimer chan time.Time

func (f firedTimer) C() <-chan time.Time { return f }

func (firedTimer) Stop() bool { return false }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Auth.APIKey = testSharedKey
	cfg.Auth.AccountTokens = []string{"tok-a", "tok-b"}
	cfg.Tasks.ImageMaxAttempts = 3
	cfg.Tasks.VideoMaxAttempts = 2
	return cfg
}

// newTestRouter wires the handler behind the real Auth middleware and the given pool.
func newTestRouter(cfg *config.Config, client UpstreamClient, pool *credential.Pool, opts ...Option) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	if cfg == nil {
		cfg = testConfig()
	}
	manager := config.NewStatic(cfg)
	opts = append([]Option{WithClock(instantClock{})}, opts...)
	if pool != nil {
		opts = append(opts, WithPool(pool))
	}
	h := New(manager, client, opts...)

	auth := mw.AuthOptions{SharedKey: func() string { return manager.Current().Auth.APIKey }}
	if pool != nil {
		auth.Pool = pool
	}
	r := gin.New()
	r.GET("/v1/models", mw.Auth(auth), h.ListModels)
	required := auth
	required.Required = true
	r.POST("/v1/chat/completions", mw.Auth(required), h.ChatCompletions)
	return r, h
}

func postChat(r http.Handler, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getModels(r http.Handler, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sseBody(lines ...string) io.ReadCloser {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString("data: ")
		buf.WriteString(l)
		buf.WriteString("\n\n")
	}
	return io.NopCloser(&buf)
}

// sseData returns the data payloads of an SSE response in order.
func sseData(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}
