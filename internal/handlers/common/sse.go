package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PrepareSSE sets standard headers for SSE and returns writer/ flusher pair.
func PrepareSSE(c *gin.Context) (gin.ResponseWriter, http.Flusher) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	w := c.Writer
	fl, _ := w.(http.Flusher)
	return w, fl
}

// SSEWriteData writes one "data:" line carrying an already-encoded JSON payload.
func SSEWriteData(w http.ResponseWriter, flusher http.Flusher, payload []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// SSEWriteDone writes the [DONE] marker commonly used for SSE endings.
func SSEWriteDone(w http.ResponseWriter, flusher http.Flusher) error {
	if _, err := w.Write([]byte("data: [DONE]\n\n")); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// SSEEmitter adapts an SSE response to the stream transcoder's output.
type SSEEmitter struct {
	W       http.ResponseWriter
	Flusher http.Flusher
}

// NewSSEEmitter writes the SSE headers and returns an emitter for c.
func NewSSEEmitter(c *gin.Context) *SSEEmitter {
	w, fl := PrepareSSE(c)
	return &SSEEmitter{W: w, Flusher: fl}
}

func (e *SSEEmitter) Data(payload []byte) error { return SSEWriteData(e.W, e.Flusher, payload) }

func (e *SSEEmitter) Done() error { return SSEWriteDone(e.W, e.Flusher) }
