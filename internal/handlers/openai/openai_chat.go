package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	apperrors "qwen2api-go/internal/errors"
	common "qwen2api-go/internal/handlers/common"
	"qwen2api-go/internal/logging"
	mw "qwen2api-go/internal/middleware"
	"qwen2api-go/internal/models"
	"qwen2api-go/internal/translator"
	"qwen2api-go/internal/upstream/qwen"
)

// chatCall is the per-request state shared by the chat branches.
type chatCall struct {
	model        string
	base         string
	features     models.Features
	stream       bool
	messages     []byte
	promptSize   int
	token        string
	credentialID string
	started      time.Time
}

// POST /v1/chat/completions
func (h *Handler) ChatCompletions(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		common.AbortWithError(c, fmt.Errorf("%w: read body: %v", apperrors.ErrInvalidRequest, err))
		return
	}
	req, err := translator.ParseChatRequest(raw)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.Set("model", req.Model)

	base, features, err := models.ParseModelName(req.Model)
	if err != nil {
		common.AbortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err))
		return
	}

	call := &chatCall{
		model:        req.Model,
		base:         base,
		features:     features,
		stream:       req.Stream,
		messages:     req.Messages,
		promptSize:   len(req.Messages),
		token:        mw.UpstreamToken(c),
		credentialID: mw.CredentialID(c),
		started:      h.now(),
	}
	h.resolveImage(c, call)

	switch {
	case features.Media():
		h.generateMedia(c, call)
	case call.stream:
		h.streamChat(c, call)
	default:
		h.completeChat(c, call)
	}
}

// resolveImage uploads the last image part of the last message and swaps it for
// the upstream handle. Failures keep the original part.
func (h *Handler) resolveImage(c *gin.Context, call *chatCall) {
	idx, url, ok := translator.LastImagePart(call.messages)
	if !ok {
		return
	}
	handle, err := h.uploader.UploadImage(c.Request.Context(), url, call.token)
	if err != nil || handle == "" {
		if err != nil {
			h.reportCredential(call.credentialID, err)
			logging.WithReq(c, nil).WithError(err).Warn("image upload failed, forwarding message as is")
		}
		return
	}
	replaced, err := translator.ReplaceImagePart(call.messages, idx, handle)
	if err != nil {
		logging.WithReq(c, nil).WithError(err).Warn("image part replace failed")
		return
	}
	call.messages = replaced
}

// fail records the outcome and writes the mapped error envelope.
func (h *Handler) fail(c *gin.Context, call *chatCall, err error) {
	h.finish(c, call, 0, err)
	common.AbortWithError(c, err)
}

// finish reports the request outcome to the pool and the usage counters.
func (h *Handler) finish(c *gin.Context, call *chatCall, completionSize int, err error) {
	h.reportCredential(call.credentialID, err)

	entry := logging.WithReq(c, log.Fields{
		"model":       call.model,
		"stream":      call.stream,
		"media":       call.features.Media(),
		"duration_ms": logging.DurationMS(h.now().Sub(call.started)),
		"error_kind":  logging.ErrorKind(err),
	})
	if err != nil {
		entry.WithError(err).Debug("chat completion failed")
	} else {
		entry.Debug("chat completion finished")
	}

	if h.usage == nil {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if recErr := h.usage.RecordRequest(ctx, call.credentialID, call.model, err == nil, int64(call.promptSize), int64(completionSize)); recErr != nil {
		log.WithError(recErr).Debug("usage record failed")
	}
}

// reportCredential feeds one upstream outcome back to the pool. Only rejections
// with a quarantine status take the account out of rotation; network errors and
// cancellations leave it alone.
func (h *Handler) reportCredential(id string, err error) {
	if id == "" || h.pool == nil {
		return
	}
	if err == nil {
		h.pool.ReportSuccess(id)
		return
	}
	var rejected *qwen.RejectedError
	if errors.As(err, &rejected) && h.quarantines(rejected.Status) {
		h.pool.ReportFailure(id, fmt.Sprintf("upstream status %d", rejected.Status))
	}
}

func (h *Handler) quarantines(status int) bool {
	statuses := h.cfg.Current().Upstream.QuarantineStatuses
	if len(statuses) == 0 {
		return qwen.IsAuthStatus(status)
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
