package streaming

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FinishReasonStop closes every completed answer.
const FinishReasonStop = "stop"

// Chunk is an OpenAI chat.completion.chunk.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// NewCompletionID returns a chatcmpl-<uuid> identifier.
func NewCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// BuildContentChunk marshals a content delta chunk.
func BuildContentChunk(id, model string, created time.Time, content string) []byte {
	return marshalChunk(id, model, created, ChunkDelta{Content: content}, nil)
}

// BuildFinalChunk marshals the empty delta carrying finish_reason.
func BuildFinalChunk(id, model string, created time.Time, finish string) []byte {
	return marshalChunk(id, model, created, ChunkDelta{}, &finish)
}

func marshalChunk(id, model string, created time.Time, delta ChunkDelta, finish *string) []byte {
	b, _ := json.Marshal(Chunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created.Unix(),
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	})
	return b
}
