package translator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "qwen2api-go/internal/errors"
)

// ChatRequest is the part of an OpenAI chat request the adapter acts on. Messages
// stay raw so fields the upstream understands but we do not pass through untouched.
type ChatRequest struct {
	Model    string
	Stream   bool
	Messages []byte
}

// ParseChatRequest validates the client body.
func ParseChatRequest(body []byte) (ChatRequest, error) {
	if !gjson.ValidBytes(body) {
		return ChatRequest{}, invalid("request body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	model := strings.TrimSpace(root.Get("model").String())
	if model == "" {
		return ChatRequest{}, invalid("model is required")
	}
	messages := root.Get("messages")
	if !messages.IsArray() || len(messages.Array()) == 0 {
		return ChatRequest{}, invalid("messages must be a non-empty array")
	}
	for i, msg := range messages.Array() {
		if !msg.IsObject() {
			return ChatRequest{}, invalid(fmt.Sprintf("messages[%d] must be an object", i))
		}
		if strings.TrimSpace(msg.Get("role").String()) == "" {
			return ChatRequest{}, invalid(fmt.Sprintf("messages[%d].role is required", i))
		}
		content := msg.Get("content")
		if content.Exists() && content.Type != gjson.String && !content.IsArray() && content.Type != gjson.Null {
			return ChatRequest{}, invalid(fmt.Sprintf("messages[%d].content must be a string or an array", i))
		}
	}
	return ChatRequest{
		Model:    model,
		Stream:   root.Get("stream").Bool(),
		Messages: []byte(messages.Raw),
	}, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidRequest, msg)
}

func lastIndex(messages []byte) int {
	return int(gjson.GetBytes(messages, "#").Int()) - 1
}

func lastPath(messages []byte, field string) string {
	return strconv.Itoa(lastIndex(messages)) + "." + field
}

// PromptText returns the text of the last message: the string content, or the
// text parts joined by newlines.
func PromptText(messages []byte) string {
	idx := lastIndex(messages)
	if idx < 0 {
		return ""
	}
	content := gjson.GetBytes(messages, strconv.Itoa(idx)+".content")
	if !content.IsArray() {
		return content.String()
	}
	var parts []string
	for _, part := range content.Array() {
		if part.Get("type").String() == "text" {
			parts = append(parts, part.Get("text").String())
		}
	}
	return strings.Join(parts, "\n")
}
