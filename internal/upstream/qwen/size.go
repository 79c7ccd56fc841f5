package qwen

import "strings"

// Upstream canvas sizes for media generation.
const (
	SizeLandscape43 = "1024*768"
	SizePortrait34  = "768*1024"
	SizeWide169     = "1280*720"
	SizeTall916     = "720*1280"
	SizeSquare      = "1024*1024"
)

var aspectHints = []struct {
	hint string
	size string
}{
	{"4:3", SizeLandscape43},
	{"3:4", SizePortrait34},
	{"16:9", SizeWide169},
	{"9:16", SizeTall916},
}

// SizeFromAspectHint is a substring heuristic, not a parser: the first of
// "4:3", "3:4", "16:9", "9:16" found anywhere in the prompt picks the canvas size,
// checked in that order. Prompts without a hint get a square canvas.
func SizeFromAspectHint(prompt string) string {
	for _, h := range aspectHints {
		if strings.Contains(prompt, h.hint) {
			return h.size
		}
	}
	return SizeSquare
}
