package translator

import (
	"github.com/tidwall/sjson"

	"qwen2api-go/internal/models"
)

// BuildChat shapes a text chat request. The last message carries the feature
// switches: feature_config.thinking_enabled for -thinking and chat_type "search"
// for -search.
func BuildChat(model string, f models.Features, messages []byte, stream bool) ([]byte, error) {
	var err error
	if f.Thinking {
		if messages, err = sjson.SetBytes(messages, lastPath(messages, "feature_config"), map[string]bool{"thinking_enabled": true}); err != nil {
			return nil, err
		}
	}
	if f.Search {
		if messages, err = sjson.SetBytes(messages, lastPath(messages, "chat_type"), "search"); err != nil {
			return nil, err
		}
	}
	return body(model, messages, stream, f.ChatType())
}

// BuildMedia shapes an image or video generation request. Media is always
// requested non-streaming and never with reasoning. The request id and canvas
// size are added by the upstream client at submission.
func BuildMedia(model string, f models.Features, messages []byte) ([]byte, error) {
	chatType := f.ChatType()
	var err error
	if messages, err = sjson.SetBytes(messages, lastPath(messages, "chat_type"), chatType); err != nil {
		return nil, err
	}
	if messages, err = sjson.SetRawBytes(messages, lastPath(messages, "extra"), []byte(`{}`)); err != nil {
		return nil, err
	}
	if messages, err = sjson.SetBytes(messages, lastPath(messages, "feature_config"), map[string]bool{"thinking_enabled": false}); err != nil {
		return nil, err
	}
	return body(model, messages, false, chatType)
}

func body(model string, messages []byte, stream bool, chatType string) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	if out, err = sjson.SetBytes(out, "model", model); err != nil {
		return nil, err
	}
	if out, err = sjson.SetRawBytes(out, "messages", messages); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "stream", stream); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "chat_type", chatType)
}
