package streaming

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apperrors "qwen2api-go/internal/errors"
)

type recordingEmitter struct {
	payloads [][]byte
	done     int
	failAt   int
}

func (e *recordingEmitter) Data(payload []byte) error {
	if e.failAt > 0 && len(e.payloads)+1 == e.failAt {
		return errors.New("client went away")
	}
	e.payloads = append(e.payloads, append([]byte(nil), payload...))
	return nil
}

func (e *recordingEmitter) Done() error {
	e.done++
	return nil
}

// contents returns the delta.content of every content chunk, skipping the final stop chunk.
func (e *recordingEmitter) contents() []string {
	var out []string
	for _, p := range e.payloads {
		if gjson.GetBytes(p, "choices.0.finish_reason").String() != "" {
			continue
		}
		out = append(out, gjson.GetBytes(p, "choices.0.delta.content").String())
	}
	return out
}

// chunkedBody returns one read per element.
type chunkedBody struct {
	reads  []string
	err    error
	closed bool
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if len(b.reads) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.reads[0])
	if n < len(b.reads[0]) {
		b.reads[0] = b.reads[0][n:]
	} else {
		b.reads = b.reads[1:]
	}
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.closed = true
	return nil
}

func frameLine(content string) string {
	return `data: {"choices":[{"delta":{"role":"assistant","content":` + quote(content) + `}}]}` + "\n\n"
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func run(t *testing.T, opts Options, reads ...string) (*recordingEmitter, *chunkedBody, *Transcoder) {
	t.Helper()
	body := &chunkedBody{reads: reads}
	out := &recordingEmitter{}
	tr := NewTranscoder(opts)
	require.NoError(t, tr.Run(context.Background(), body, out))
	return out, body, tr
}

func TestFrameSplitAcrossThreeReads(t *testing.T) {
	line := frameLine("Hello")
	a, b := len(line)/3, 2*len(line)/3

	out, body, tr := run(t, Options{Model: "qwen-max-latest"}, line[:a], line[a:b], line[b:])
	require.Equal(t, []string{"Hello"}, out.contents())
	require.Equal(t, 1, out.done)
	require.True(t, body.closed)
	require.Equal(t, StateClosed, tr.State())
}

func TestSeveralFramesInOneRead(t *testing.T) {
	out, _, _ := run(t, Options{}, frameLine("a")+frameLine("ab")+frameLine("abc"))
	require.Equal(t, []string{"a", "b", "c"}, out.contents())
}

func TestCumulativeDeltasAreNormalized(t *testing.T) {
	out, _, _ := run(t, Options{}, frameLine("Hello"), frameLine("Hello world"), frameLine("Hello world!"))
	require.Equal(t, []string{"Hello", " world", "!"}, out.contents())
}

func TestIncrementalDeltasPassThrough(t *testing.T) {
	out, _, _ := run(t, Options{}, frameLine("Hel"), frameLine("lo"), frameLine(" there"))
	require.Equal(t, []string{"Hel", "lo", " there"}, out.contents())
}

func TestHiddenReasoningIsSuppressed(t *testing.T) {
	opts := Options{Thinking: true, HideReasoning: true}
	out, _, _ := run(t, opts, frameLine("<think>foo"), frameLine("<think>foo</think>bar"))

	joined := strings.Join(out.contents(), "")
	require.Equal(t, "bar", joined)
	require.NotContains(t, joined, "foo")
}

func TestReasoningVisibleWhenNotHidden(t *testing.T) {
	out, _, _ := run(t, Options{Thinking: true}, frameLine("<think>foo"), frameLine("<think>foo</think>bar"))
	require.Equal(t, []string{"<think>foo", "</think>bar"}, out.contents())
}

func TestStreamEndsWithStopChunkThenDone(t *testing.T) {
	out, _, _ := run(t, Options{Model: "qwen-plus-latest"}, frameLine("hi"))
	require.Len(t, out.payloads, 2)
	last := out.payloads[len(out.payloads)-1]
	require.Equal(t, "stop", gjson.GetBytes(last, "choices.0.finish_reason").String())
	require.Equal(t, "qwen-plus-latest", gjson.GetBytes(last, "model").String())
	require.Equal(t, 1, out.done)

	first := out.payloads[0]
	require.Equal(t, gjson.GetBytes(first, "id").String(), gjson.GetBytes(last, "id").String())
	require.True(t, strings.HasPrefix(gjson.GetBytes(first, "id").String(), "chatcmpl-"))
	require.Equal(t, "chat.completion.chunk", gjson.GetBytes(first, "object").String())
}

func TestUpstreamDoneAndControlLinesIgnored(t *testing.T) {
	out, _, _ := run(t, Options{}, ": keepalive\n", "event: message\n", frameLine("x"), "data: [DONE]\n\n")
	require.Equal(t, []string{"x"}, out.contents())
	require.Equal(t, 1, out.done)
}

func TestUnparseableTailIsDropped(t *testing.T) {
	out, _, tr := run(t, Options{}, frameLine("ok"), `data: {"choices":[{"delta":`)
	require.Equal(t, []string{"ok"}, out.contents())
	require.Equal(t, 1, tr.reasm.Dropped())
	require.Equal(t, 1, out.done)
}

func searchFrame() string {
	return `data: {"choices":[{"delta":{"content":"","name":"web_search","extra":{"web_search_info":[{"title":"Go","url":"https://go.dev","hostname":"go.dev","snippet":"The Go language"}]}}}]}` + "\n\n"
}

func TestSearchInfoPrependedWithoutThinking(t *testing.T) {
	out, _, _ := run(t, Options{SearchInfoMode: SearchInfoTable}, searchFrame(), frameLine("answer"))
	got := out.contents()
	require.Len(t, got, 1)
	require.True(t, strings.HasPrefix(got[0], "<think>\n| 序号"))
	require.Contains(t, got[0], "[Go](https://go.dev)")
	require.True(t, strings.HasSuffix(got[0], "</think>\nanswer"))
}

func TestSearchInfoSplicedIntoReasoning(t *testing.T) {
	opts := Options{Thinking: true, SearchInfoMode: SearchInfoText}
	out, _, _ := run(t, opts, searchFrame(), frameLine("<think>pondering"))
	got := out.contents()
	require.Len(t, got, 1)
	require.True(t, strings.HasPrefix(got[0], "<think>\n\n\n1. [Go](https://go.dev)"))
	require.True(t, strings.HasSuffix(got[0], "\n\n\npondering"))
}

func TestSearchInfoFlushedAtEndWhenReasoningHidden(t *testing.T) {
	opts := Options{Thinking: true, HideReasoning: true, SearchInfoMode: SearchInfoText}
	out, _, _ := run(t, opts, searchFrame(), frameLine("<think>x</think>answer"))
	got := out.contents()
	require.Equal(t, []string{"answer", "\n\n\n1. [Go](https://go.dev)\n   The Go language"}, got)
	require.Equal(t, 1, out.done)
}

func TestReadErrorStillTerminatesStream(t *testing.T) {
	body := &chunkedBody{reads: []string{frameLine("partial")}, err: errors.New("connection reset")}
	out := &recordingEmitter{}
	err := NewTranscoder(Options{}).Run(context.Background(), body, out)
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnreachable)
	require.Equal(t, 1, out.done)
	require.True(t, body.closed)
}

func TestCancelledContextSkipsSentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body := &chunkedBody{reads: []string{frameLine("x")}}
	out := &recordingEmitter{}
	err := NewTranscoder(Options{}).Run(ctx, body, out)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, out.done)
	require.True(t, body.closed)
}

// stalledBody yields its frames, then blocks until ctx ends.
type stalledBody struct {
	ctx    context.Context
	reads  []string
	closed bool
}

func (b *stalledBody) Read(p []byte) (int, error) {
	if len(b.reads) > 0 {
		n := copy(p, b.reads[0])
		b.reads = b.reads[1:]
		return n, nil
	}
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b *stalledBody) Close() error {
	b.closed = true
	return nil
}

func TestExpiredDeadlineDrainsStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	body := &stalledBody{ctx: ctx, reads: []string{frameLine("partial")}}
	out := &recordingEmitter{}

	err := NewTranscoder(Options{}).Run(ctx, body, out)
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnreachable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []string{"partial"}, out.contents())
	require.Equal(t, 1, out.done)
	last := out.payloads[len(out.payloads)-1]
	require.Equal(t, "stop", gjson.GetBytes(last, "choices.0.finish_reason").String())
	require.True(t, body.closed)
}

func TestExpiredDeadlineBeforeFirstReadStillDrains(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	body := &chunkedBody{reads: []string{frameLine("x")}}
	out := &recordingEmitter{}

	err := NewTranscoder(Options{}).Run(ctx, body, out)
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnreachable)
	require.Equal(t, 1, out.done)
	require.True(t, body.closed)
}

func TestEmitFailureStopsStream(t *testing.T) {
	body := &chunkedBody{reads: []string{frameLine("a"), frameLine("ab")}}
	out := &recordingEmitter{failAt: 2}
	err := NewTranscoder(Options{}).Run(context.Background(), body, out)
	require.Error(t, err)
	require.Zero(t, out.done)
	require.True(t, body.closed)
}
