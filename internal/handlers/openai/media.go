package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	common "qwen2api-go/internal/handlers/common"
	"qwen2api-go/internal/logging"
	"qwen2api-go/internal/streaming"
	"qwen2api-go/internal/tasks"
	"qwen2api-go/internal/translator"
	"qwen2api-go/internal/upstream/qwen"
)

// generateMedia submits an image or video task and holds the request open until
// the poller reaches a terminal state. The answer is a markdown link to the result.
func (h *Handler) generateMedia(c *gin.Context, call *chatCall) {
	cfg := h.cfg.Current()
	kind := tasks.KindImage
	if call.features.Video {
		kind = tasks.KindVideo
	}

	body, err := translator.BuildMedia(call.base, call.features, call.messages)
	if err != nil {
		h.fail(c, call, err)
		return
	}
	size := qwen.SizeFromAspectHint(translator.PromptText(call.messages))

	submitCtx, cancel := common.WithUpstreamTimeout(c.Request.Context(), false)
	taskID, err := h.client.SubmitMediaTask(submitCtx, body, call.token, size)
	cancel()
	if err != nil {
		h.fail(c, call, err)
		return
	}

	poller := tasks.NewPoller(kind, tasks.PolicyFromConfig(cfg.Tasks, kind), func(ctx context.Context, id string) (qwen.TaskStatus, error) {
		return h.client.TaskStatus(ctx, id, call.token)
	})
	poller.Clock = h.clock
	poller.Publisher = h.publisher

	ctx := c.Request.Context()
	task, err := poller.Wait(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			// client gone, nobody to answer
			h.finish(c, call, 0, err)
			c.Abort()
			return
		}
		h.fail(c, call, err)
		return
	}

	content := fmt.Sprintf("[%s](%s)", kind, task.ResultURL)
	h.finish(c, call, len(content), nil)
	logging.WithReq(c, log.Fields{"task_id": task.ID, "attempts": task.Attempts, "size": size}).Info("media generated")

	if !call.stream {
		c.JSON(http.StatusOK, newCompletion(call.model, content, call.promptSize, h.now()))
		return
	}
	id, created := streaming.NewCompletionID(), h.now()
	out := common.NewSSEEmitter(c)
	if err := out.Data(streaming.BuildContentChunk(id, call.model, created, content)); err != nil {
		return
	}
	if err := out.Data(streaming.BuildFinalChunk(id, call.model, created, streaming.FinishReasonStop)); err != nil {
		return
	}
	_ = out.Done()
}
