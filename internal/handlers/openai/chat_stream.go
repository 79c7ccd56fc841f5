package openai

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	common "qwen2api-go/internal/handlers/common"
	"qwen2api-go/internal/logging"
	"qwen2api-go/internal/streaming"
	"qwen2api-go/internal/translator"
)

func (h *Handler) streamChat(c *gin.Context, call *chatCall) {
	cfg := h.cfg.Current()
	body, err := translator.BuildChat(call.base, call.features, call.messages, true)
	if err != nil {
		h.fail(c, call, err)
		return
	}

	// the deadline bounds the upstream request only; Run watches the client
	ctx, cancel := h.streamContext(c.Request.Context())
	defer cancel()

	upstreamBody, err := h.client.Stream(ctx, body, call.token)
	if err != nil {
		// nothing written yet, the client still gets a JSON error
		h.fail(c, call, err)
		return
	}

	tc := streaming.NewTranscoder(streaming.Options{
		Model:          call.model,
		Thinking:       call.features.Thinking,
		HideReasoning:  !cfg.Stream.OutputThink,
		SearchInfoMode: cfg.Stream.SearchInfoMode,
	})
	err = tc.Run(c.Request.Context(), upstreamBody, common.NewSSEEmitter(c))
	h.finish(c, call, 0, err)
	if err == nil {
		return
	}

	entry := logging.WithReq(c, log.Fields{"id": tc.ID(), "chunks": tc.Chunks()}).WithError(err)
	if errors.Is(err, context.Canceled) {
		entry.Info("client left mid-stream")
		return
	}
	entry.Warn("stream ended with error")
}

func (h *Handler) streamContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.streamTimeout > 0 {
		return context.WithTimeout(parent, h.streamTimeout)
	}
	return common.WithUpstreamTimeout(parent, true)
}
