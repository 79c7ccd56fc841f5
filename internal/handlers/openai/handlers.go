package openai

import (
	"context"
	"io"
	"time"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/events"
	statstracker "qwen2api-go/internal/stats"
	"qwen2api-go/internal/tasks"
	"qwen2api-go/internal/upstream/qwen"
)

// UpstreamClient captures the subset of the Qwen client used by the OpenAI handlers.
type UpstreamClient interface {
	Complete(ctx context.Context, body []byte, token string) ([]byte, error)
	Stream(ctx context.Context, body []byte, token string) (io.ReadCloser, error)
	SubmitMediaTask(ctx context.Context, body []byte, token, size string) (string, error)
	TaskStatus(ctx context.Context, taskID, token string) (qwen.TaskStatus, error)
	ListModels(ctx context.Context, token string) ([]string, error)
}

var _ UpstreamClient = (*qwen.Client)(nil)

// ImageUploader turns a client image reference into an upstream file handle.
// An empty handle or an error leaves the message untouched.
type ImageUploader interface {
	UploadImage(ctx context.Context, imageURL, token string) (string, error)
}

var _ ImageUploader = (*qwen.Client)(nil)

// NopUploader never resolves images.
type NopUploader struct{}

func (NopUploader) UploadImage(context.Context, string, string) (string, error) { return "", nil }

// CredentialReporter receives per-request outcomes for pooled accounts.
type CredentialReporter interface {
	ReportSuccess(id string)
	ReportFailure(id, reason string)
}

// Handler aggregates shared dependencies for OpenAI-compatible endpoints.
type Handler struct {
	cfg       *config.Manager
	client    UpstreamClient
	pool      CredentialReporter
	uploader  ImageUploader
	usage     *statstracker.UsageStats
	publisher events.Publisher
	clock     tasks.Clock
	models    *modelCache
	now       func() time.Time

	streamTimeout time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithPool enables outcome reporting for requests served by pooled accounts.
func WithPool(pool CredentialReporter) Option {
	return func(h *Handler) { h.pool = pool }
}

func WithUploader(u ImageUploader) Option {
	return func(h *Handler) {
		if u != nil {
			h.uploader = u
		}
	}
}

func WithUsageStats(u *statstracker.UsageStats) Option {
	return func(h *Handler) { h.usage = u }
}

// WithPublisher forwards media task results to the event hub.
func WithPublisher(p events.Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

// WithClock replaces the media poll clock; tests use it to skip the waits.
func WithClock(c tasks.Clock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithStreamTimeout overrides the upstream deadline of streaming chats.
func WithStreamTimeout(d time.Duration) Option {
	return func(h *Handler) { h.streamTimeout = d }
}

// New constructs the OpenAI-compatible handler set.
func New(cfg *config.Manager, client UpstreamClient, opts ...Option) *Handler {
	if cfg == nil {
		cfg = config.NewStatic(config.Defaults())
	}
	h := &Handler{
		cfg:      cfg,
		client:   client,
		uploader: NopUploader{},
		clock:    tasks.SystemClock{},
		models:   newModelCache(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Route handlers live in split files:
// - openai_models.go: ListModels
// - openai_chat.go: ChatCompletions and outcome reporting
// - chat_stream.go / chat_response.go: streaming and buffered chat
// - media.go: image and video generation
