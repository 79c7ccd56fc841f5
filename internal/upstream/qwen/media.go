package qwen

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/upstream"
)

// SubmitMediaTask posts an image/video generation request. The upstream answers the
// "non-streaming" call with an acknowledgement whose second message carries the
// asynchronous task id; the result itself must be polled with TaskStatus.
func (c *Client) SubmitMediaTask(ctx context.Context, body []byte, token, size string) (string, error) {
	var err error
	if body, err = sjson.SetBytes(body, "stream", false); err != nil {
		return "", err
	}
	if body, err = sjson.SetBytes(body, "id", uuid.NewString()); err != nil {
		return "", err
	}
	if body, err = sjson.SetBytes(body, "size", size); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, "media.submit", http.MethodPost, pathChatCompletions, body, token)
	if err != nil {
		return "", err
	}
	ack, err := upstream.ReadAll(resp, constants.MaxUpstreamErrorBody)
	if err != nil {
		return "", unreachable("media.submit", err)
	}
	taskID := extractTaskID(ack)
	if taskID == "" {
		return "", &RejectedError{Op: "media.submit", Status: resp.StatusCode, Body: ack}
	}
	return taskID, nil
}

// extractTaskID reads messages[1].extra.wanx.task_id, falling back to the first
// message that carries one.
func extractTaskID(ack []byte) string {
	if id := gjson.GetBytes(ack, "messages.1.extra.wanx.task_id").String(); id != "" {
		return id
	}
	for _, id := range gjson.GetBytes(ack, "messages.#.extra.wanx.task_id").Array() {
		if s := id.String(); s != "" {
			return s
		}
	}
	return ""
}

// TaskStatus queries one media task.
func (c *Client) TaskStatus(ctx context.Context, taskID, token string) (TaskStatus, error) {
	if strings.TrimSpace(taskID) == "" {
		return TaskStatus{}, fmt.Errorf("empty task id")
	}
	resp, err := c.do(ctx, "media.status", http.MethodGet, pathTaskStatus+url.PathEscape(taskID), nil, token)
	if err != nil {
		return TaskStatus{}, err
	}
	data, err := upstream.ReadAll(resp, constants.MaxUpstreamErrorBody)
	if err != nil {
		return TaskStatus{}, unreachable("media.status", err)
	}
	parsed := gjson.ParseBytes(data)
	return TaskStatus{
		TaskID:  taskID,
		State:   TaskState(strings.ToLower(parsed.Get("task_status").String())),
		Content: parsed.Get("content").String(),
		Message: parsed.Get("message").String(),
	}, nil
}
