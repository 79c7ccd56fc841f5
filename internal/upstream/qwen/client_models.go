package qwen

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/upstream"
)

// ListModels returns the upstream model identifiers (data[].id).
func (c *Client) ListModels(ctx context.Context, token string) ([]string, error) {
	resp, err := c.do(ctx, "models.list", http.MethodGet, pathModels, nil, token)
	if err != nil {
		return nil, err
	}
	data, err := upstream.ReadAll(resp, constants.MaxPendingFragmentSize)
	if err != nil {
		return nil, unreachable("models.list", err)
	}
	ids := gjson.GetBytes(data, "data.#.id").Array()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s := id.String(); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, &RejectedError{Op: "models.list", Status: resp.StatusCode, Body: data}
	}
	return out, nil
}
