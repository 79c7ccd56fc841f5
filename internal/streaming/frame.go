package streaming

import (
	"bytes"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"qwen2api-go/internal/constants"
	apperrors "qwen2api-go/internal/errors"
	"qwen2api-go/internal/monitoring"
)

// Frame is one decoded upstream stream object.
type Frame struct {
	Raw []byte

	// Content is choices[0].delta.content as sent, possibly cumulative.
	Content    string
	HasContent bool

	// Name tags auxiliary frames; "web_search" frames carry SearchInfo.
	Name       string
	SearchInfo gjson.Result
}

const frameNameWebSearch = "web_search"

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// Reassembler turns raw stream reads into frames. Reads may split one frame
// across several calls or carry several frames separated by newlines. A line
// that does not parse is kept as the single pending fragment and retried with
// the next line; once the joined text parses the fragment is cleared.
type Reassembler struct {
	pending []byte
	dropped int
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed consumes one read and returns the frames completed by it, in arrival order.
func (r *Reassembler) Feed(chunk []byte) []Frame {
	var out []Frame
	for _, piece := range bytes.Split(chunk, []byte("\n")) {
		line := bytes.TrimSuffix(piece, []byte("\r"))
		if len(bytes.TrimSpace(line)) == 0 {
			if len(r.pending) > 0 && len(line) > 0 {
				r.pending = append(r.pending, line...)
			}
			continue
		}
		if f, ok := r.accept(line); ok {
			out = append(out, f)
		}
	}
	return out
}

// Pending reports whether an unparsed fragment is buffered.
func (r *Reassembler) Pending() bool { return len(r.pending) > 0 }

// Dropped returns how many fragments were discarded so far.
func (r *Reassembler) Dropped() int { return r.dropped }

// Flush discards whatever fragment is left at end of stream. It never became
// a frame, so it is logged and counted instead of surfaced.
func (r *Reassembler) Flush() {
	if len(r.pending) == 0 {
		return
	}
	r.drop("end of stream")
}

func (r *Reassembler) accept(line []byte) (Frame, bool) {
	if len(r.pending) == 0 {
		if isControlLine(line) {
			return Frame{}, false
		}
		if f, ok := parseFrame(line); ok {
			return f, true
		}
		r.pending = append(r.pending[:0], line...)
		return Frame{}, false
	}

	joined := make([]byte, 0, len(r.pending)+len(line))
	joined = append(append(joined, r.pending...), line...)
	if f, ok := parseFrame(joined); ok {
		r.pending = r.pending[:0]
		return f, true
	}
	if isDone(line) {
		return Frame{}, false
	}
	if f, ok := parseFrame(line); ok {
		// a complete frame arrived, so the buffered text was never going to close
		r.drop("superseded by complete frame")
		return f, true
	}
	if len(joined) > constants.MaxPendingFragmentSize {
		r.pending = joined
		r.drop("fragment too large")
		return Frame{}, false
	}
	r.pending = joined
	return Frame{}, false
}

func (r *Reassembler) drop(reason string) {
	log.WithFields(log.Fields{
		"reason": reason,
		"bytes":  len(r.pending),
		"kind":   apperrors.KindFrameDecode,
	}).Warn("dropping unparseable stream fragment")
	monitoring.StreamFramesDroppedTotal.Inc()
	r.dropped++
	r.pending = r.pending[:0]
}

// isControlLine matches SSE fields that never carry a frame.
func isControlLine(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	switch {
	case trimmed[0] == ':':
		return true
	case bytes.HasPrefix(trimmed, []byte("event:")),
		bytes.HasPrefix(trimmed, []byte("id:")),
		bytes.HasPrefix(trimmed, []byte("retry:")):
		return true
	}
	return isDone(trimmed)
}

func isDone(line []byte) bool {
	return bytes.Equal(stripDataPrefix(line), doneMarker)
}

func stripDataPrefix(line []byte) []byte {
	payload := bytes.TrimSpace(line)
	if bytes.HasPrefix(payload, dataPrefix) {
		payload = bytes.TrimSpace(payload[len(dataPrefix):])
	}
	return payload
}

// parseFrame accepts only self-contained JSON objects.
func parseFrame(candidate []byte) (Frame, bool) {
	payload := stripDataPrefix(candidate)
	if len(payload) == 0 || payload[0] != '{' || !gjson.ValidBytes(payload) {
		return Frame{}, false
	}
	payload = append([]byte(nil), payload...)
	delta := gjson.GetBytes(payload, "choices.0.delta")
	content := delta.Get("content")
	return Frame{
		Raw:        payload,
		Content:    content.String(),
		HasContent: content.Exists(),
		Name:       delta.Get("name").String(),
		SearchInfo: delta.Get("extra.web_search_info"),
	}, true
}
