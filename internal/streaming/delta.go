package streaming

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripCumulativePrefix is the cumulative-delta heuristic. The upstream sometimes
// resends the whole text so far instead of the increment, so the previous raw
// content is removed from the new raw content (first occurrence, plain substring
// removal, no diffing). It is exact for monotonic appends and degrades to the
// literal text otherwise; an incremental delta that happens to repeat the previous
// one verbatim is swallowed. Callers keep raw, not the result, as the next prev.
func StripCumulativePrefix(raw, prev string) string {
	if prev == "" {
		return raw
	}
	return strings.Replace(raw, prev, "", 1)
}

// StripReasoning removes <think>...</think> segments from a buffered answer.
// An unterminated segment runs to the end of the text; a stray closing marker
// drops everything before it.
func StripReasoning(content string) string {
	if i := strings.LastIndex(content, thinkClose); i >= 0 && !strings.Contains(content[:i], thinkOpen) {
		content = content[i+len(thinkClose):]
	}
	for {
		start := strings.Index(content, thinkOpen)
		if start < 0 {
			break
		}
		end := strings.Index(content[start:], thinkClose)
		if end < 0 {
			content = content[:start]
			break
		}
		content = content[:start] + content[start+end+len(thinkClose):]
	}
	return strings.TrimLeft(content, " \r\n")
}
