package translator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apperrors "qwen2api-go/internal/errors"
	"qwen2api-go/internal/models"
)

const twoMessages = `[{"role":"system","content":"be brief"},{"role":"user","content":"draw a cat 16:9"}]`

func TestParseChatRequest(t *testing.T) {
	req, err := ParseChatRequest([]byte(`{"model":"qwen-max-latest-thinking","stream":true,"messages":` + twoMessages + `}`))
	require.NoError(t, err)
	require.Equal(t, "qwen-max-latest-thinking", req.Model)
	require.True(t, req.Stream)
	require.Equal(t, int64(2), gjson.GetBytes(req.Messages, "#").Int())
}

func TestParseChatRequestRejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"model":`,
		"missing model": `{"messages":[{"role":"user","content":"hi"}]}`,
		"no messages":   `{"model":"m","messages":[]}`,
		"bad message":   `{"model":"m","messages":["hi"]}`,
		"no role":       `{"model":"m","messages":[{"content":"hi"}]}`,
		"bad content":   `{"model":"m","messages":[{"role":"user","content":42}]}`,
	}
	for name, body := range cases {
		_, err := ParseChatRequest([]byte(body))
		require.ErrorIs(t, err, apperrors.ErrInvalidRequest, name)
	}
}

func TestBuildChatSetsFeaturesOnLastMessage(t *testing.T) {
	body, err := BuildChat("qwen-max-latest", models.Features{Thinking: true, Search: true}, []byte(twoMessages), true)
	require.NoError(t, err)

	require.Equal(t, "qwen-max-latest", gjson.GetBytes(body, "model").String())
	require.True(t, gjson.GetBytes(body, "stream").Bool())
	require.Equal(t, "search", gjson.GetBytes(body, "chat_type").String())
	require.True(t, gjson.GetBytes(body, "messages.1.feature_config.thinking_enabled").Bool())
	require.Equal(t, "search", gjson.GetBytes(body, "messages.1.chat_type").String())
	require.False(t, gjson.GetBytes(body, "messages.0.feature_config").Exists())
}

func TestBuildChatPlain(t *testing.T) {
	body, err := BuildChat("qwen-plus-latest", models.Features{}, []byte(twoMessages), false)
	require.NoError(t, err)
	require.Equal(t, "t2t", gjson.GetBytes(body, "chat_type").String())
	require.False(t, gjson.GetBytes(body, "messages.1.feature_config").Exists())
	require.Equal(t, "be brief", gjson.GetBytes(body, "messages.0.content").String())
}

func TestBuildMedia(t *testing.T) {
	body, err := BuildMedia("qwen-plus-latest", models.Features{Video: true, Thinking: true}, []byte(twoMessages))
	require.NoError(t, err)
	require.Equal(t, "t2v", gjson.GetBytes(body, "chat_type").String())
	require.False(t, gjson.GetBytes(body, "stream").Bool())
	require.Equal(t, "t2v", gjson.GetBytes(body, "messages.1.chat_type").String())
	require.True(t, gjson.GetBytes(body, "messages.1.extra").IsObject())
	require.False(t, gjson.GetBytes(body, "messages.1.feature_config.thinking_enabled").Bool())
	require.True(t, gjson.GetBytes(body, "messages.1.feature_config.thinking_enabled").Exists())
}

func TestPromptText(t *testing.T) {
	require.Equal(t, "draw a cat 16:9", PromptText([]byte(twoMessages)))

	parts := `[{"role":"user","content":[{"type":"text","text":"describe"},{"type":"image_url","image_url":{"url":"https://x/a.png"}},{"type":"text","text":"in 9:16"}]}]`
	require.Equal(t, "describe\nin 9:16", PromptText([]byte(parts)))
	require.Equal(t, "", PromptText([]byte(`[]`)))
}

func TestLastImagePartAndReplace(t *testing.T) {
	msgs := []byte(`[
		{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://x/old.png"}}]},
		{"role":"user","content":[
			{"type":"image_url","image_url":{"url":"https://x/first.png"}},
			{"type":"text","text":"compare"},
			{"type":"image_url","image_url":{"url":"https://x/last.png"}},
			{"type":"text","text":"please"}
		]}
	]`)

	idx, url, ok := LastImagePart(msgs)
	require.True(t, ok)
	require.Equal(t, 2, idx)
	require.Equal(t, "https://x/last.png", url)

	out, err := ReplaceImagePart(msgs, idx, "img-123")
	require.NoError(t, err)
	require.Equal(t, "image", gjson.GetBytes(out, "1.content.2.type").String())
	require.Equal(t, "img-123", gjson.GetBytes(out, "1.content.2.image").String())
	require.False(t, gjson.GetBytes(out, "1.content.2.image_url").Exists())
	require.Equal(t, "https://x/first.png", gjson.GetBytes(out, "1.content.0.image_url.url").String())
	require.Equal(t, "https://x/old.png", gjson.GetBytes(out, "0.content.0.image_url.url").String())
}

func TestLastImagePartAbsent(t *testing.T) {
	_, _, ok := LastImagePart([]byte(twoMessages))
	require.False(t, ok)

	_, _, ok = LastImagePart([]byte(`[{"role":"user","content":[{"type":"image_url","image_url":{"url":"u"}}]},{"role":"user","content":"text only"}]`))
	require.False(t, ok)
}
