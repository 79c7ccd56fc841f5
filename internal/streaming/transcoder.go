package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"qwen2api-go/internal/constants"
	apperrors "qwen2api-go/internal/errors"
	"qwen2api-go/internal/monitoring"
)

// State is the transcoder lifecycle: Streaming → Draining → Closed.
type State int32

const (
	StateStreaming State = iota
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Emitter receives outbound SSE data payloads. Done writes the [DONE] sentinel.
type Emitter interface {
	Data(payload []byte) error
	Done() error
}

// Options are fixed for one request.
type Options struct {
	Model string

	// Thinking is set when the client asked for the -thinking variant.
	Thinking bool

	// HideReasoning withholds everything up to </think> for thinking requests.
	HideReasoning bool

	SearchInfoMode string
}

// Transcoder converts one upstream stream into OpenAI chunks. It is request-scoped.
type Transcoder struct {
	opts    Options
	id      string
	created time.Time
	state   atomic.Int32
	reasm   *Reassembler

	prev       string
	thinkEnded bool

	pendingSearch gjson.Result
	searchDone    bool

	chunks int
}

func NewTranscoder(opts Options) *Transcoder {
	return &Transcoder{
		opts:    opts,
		id:      NewCompletionID(),
		created: time.Now(),
		reasm:   NewReassembler(),
	}
}

// ID is the chatcmpl id shared by every chunk of this response.
func (t *Transcoder) ID() string { return t.id }

func (t *Transcoder) State() State { return State(t.state.Load()) }

// Chunks returns the number of content chunks emitted.
func (t *Transcoder) Chunks() int { return t.chunks }

// Run pumps body into out until the upstream ends, then drains: pending search
// info is flushed, a stop chunk and exactly one [DONE] are written. body is always
// closed. If ctx is cancelled the stream is abandoned without a sentinel since the
// client is gone. A read error mid-stream, including an expired ctx deadline,
// still terminates the client stream cleanly and is returned as
// ErrUpstreamUnreachable.
func (t *Transcoder) Run(ctx context.Context, body io.ReadCloser, out Emitter) error {
	defer body.Close()
	defer t.state.Store(int32(StateClosed))

	buf := make([]byte, constants.StreamReadBufferSize)
	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				readErr = fmt.Errorf("read upstream stream: %w: %w", apperrors.ErrUpstreamUnreachable, err)
				break
			}
			return err
		}
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range t.reasm.Feed(buf[:n]) {
				if emitErr := t.handle(frame, out); emitErr != nil {
					return emitErr
				}
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return ctxErr
		}
		readErr = fmt.Errorf("read upstream stream: %w: %w", apperrors.ErrUpstreamUnreachable, err)
		break
	}

	if err := t.drain(out); err != nil {
		return err
	}
	return readErr
}

func (t *Transcoder) drain(out Emitter) error {
	t.state.Store(int32(StateDraining))
	t.reasm.Flush()

	if t.pendingSearch.Exists() {
		if rendered := RenderSearchInfo(t.pendingSearch, t.opts.SearchInfoMode); rendered != "" {
			if err := t.emit(out, "\n\n\n"+rendered); err != nil {
				return err
			}
		}
		t.pendingSearch = gjson.Result{}
	}

	if err := out.Data(BuildFinalChunk(t.id, t.opts.Model, t.created, FinishReasonStop)); err != nil {
		return err
	}
	if err := out.Done(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"id":      t.id,
		"model":   t.opts.Model,
		"chunks":  t.chunks,
		"dropped": t.reasm.Dropped(),
	}).Debug("stream transcoded")
	return nil
}

func (t *Transcoder) handle(frame Frame, out Emitter) error {
	if frame.Name == frameNameWebSearch && frame.SearchInfo.Exists() && !t.searchDone {
		t.pendingSearch = frame.SearchInfo
	}

	raw := frame.Content
	content := StripCumulativePrefix(raw, t.prev)
	if frame.HasContent {
		t.prev = raw
	}

	if t.suppressing() {
		if !strings.Contains(raw, thinkClose) {
			return nil
		}
		// only what follows the marker in this frame is visible
		if i := strings.Index(content, thinkClose); i >= 0 {
			content = content[i+len(thinkClose):]
		} else {
			content = ""
		}
		t.thinkEnded = true
	}

	content = t.injectSearch(content)
	if content == "" {
		return nil
	}
	return t.emit(out, content)
}

func (t *Transcoder) suppressing() bool {
	return t.opts.Thinking && t.opts.HideReasoning && !t.thinkEnded
}

// injectSearch splices cached search results into visible reasoning: right after
// <think> for thinking requests, or as its own <think> block ahead of the first
// visible content otherwise. With reasoning hidden the payload waits for drain.
func (t *Transcoder) injectSearch(content string) string {
	if !t.pendingSearch.Exists() || t.opts.HideReasoning {
		return content
	}
	if t.opts.Thinking && !strings.Contains(content, thinkOpen) {
		return content
	}
	if !t.opts.Thinking && content == "" {
		return content
	}
	if rendered := RenderSearchInfo(t.pendingSearch, t.opts.SearchInfoMode); rendered != "" {
		if t.opts.Thinking {
			content = strings.Replace(content, thinkOpen, thinkOpen+"\n\n\n"+rendered+"\n\n\n", 1)
		} else {
			content = thinkOpen + "\n" + rendered + "\n" + thinkClose + "\n" + content
		}
	}
	t.pendingSearch = gjson.Result{}
	t.searchDone = true
	return content
}

func (t *Transcoder) emit(out Emitter, content string) error {
	if err := out.Data(BuildContentChunk(t.id, t.opts.Model, t.created, content)); err != nil {
		return err
	}
	t.chunks++
	monitoring.StreamChunksTotal.Inc()
	return nil
}
