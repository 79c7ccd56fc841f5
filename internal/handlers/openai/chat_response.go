package openai

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	apperrors "qwen2api-go/internal/errors"
	common "qwen2api-go/internal/handlers/common"
	"qwen2api-go/internal/streaming"
	"qwen2api-go/internal/translator"
)

type chatCompletion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   completionUsage    `json:"usage"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionUsage is approximate: sizes in bytes, not tokens.
type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func newCompletion(model, content string, promptSize int, created time.Time) chatCompletion {
	return chatCompletion{
		ID:      streaming.NewCompletionID(),
		Object:  "chat.completion",
		Created: created.Unix(),
		Model:   model,
		Choices: []completionChoice{{
			Index:        0,
			Message:      completionMessage{Role: "assistant", Content: content},
			FinishReason: streaming.FinishReasonStop,
		}},
		Usage: completionUsage{
			PromptTokens:     promptSize,
			CompletionTokens: len(content),
			TotalTokens:      promptSize + len(content),
		},
	}
}

func (h *Handler) completeChat(c *gin.Context, call *chatCall) {
	cfg := h.cfg.Current()
	body, err := translator.BuildChat(call.base, call.features, call.messages, false)
	if err != nil {
		h.fail(c, call, err)
		return
	}

	ctx, cancel := common.WithUpstreamTimeout(c.Request.Context(), false)
	defer cancel()

	resp, err := h.client.Complete(ctx, body, call.token)
	if err != nil {
		h.fail(c, call, err)
		return
	}
	content := gjson.GetBytes(resp, "choices.0.message.content")
	if !content.Exists() {
		h.fail(c, call, fmt.Errorf("%w: completion without choices.0.message.content", apperrors.ErrUpstreamRejected))
		return
	}

	text := content.String()
	if call.features.Thinking && !cfg.Stream.OutputThink {
		text = streaming.StripReasoning(text)
	}
	h.finish(c, call, len(text), nil)
	c.JSON(http.StatusOK, newCompletion(call.model, text, call.promptSize, h.now()))
}
