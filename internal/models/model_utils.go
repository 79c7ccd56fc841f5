package models

import (
	"fmt"
	"strings"
)

// Capability suffixes understood on the client-facing model name.
const (
	SuffixThinking = "-thinking"
	SuffixSearch   = "-search"
	SuffixImage    = "-t2i"
	SuffixVideo    = "-t2v"
)

// Features are the request-level flags encoded as model suffixes.
type Features struct {
	Thinking bool
	Search   bool
	Image    bool
	Video    bool
}

// Media reports whether the request asks for image or video generation.
func (f Features) Media() bool { return f.Image || f.Video }

// ChatType is the upstream chat_type for the request.
func (f Features) ChatType() string {
	switch {
	case f.Image:
		return "t2i"
	case f.Video:
		return "t2v"
	case f.Search:
		return "search"
	default:
		return "t2t"
	}
}

// ParseModelName strips capability suffixes from the end of model, in any order,
// and returns the upstream model identifier with the decoded features.
// Suffixes in the middle of the name are part of the identifier and are kept.
func ParseModelName(model string) (string, Features, error) {
	base := strings.TrimSpace(model)
	var f Features
	for {
		switch {
		case !f.Thinking && strings.HasSuffix(base, SuffixThinking):
			f.Thinking = true
			base = strings.TrimSuffix(base, SuffixThinking)
		case !f.Search && strings.HasSuffix(base, SuffixSearch):
			f.Search = true
			base = strings.TrimSuffix(base, SuffixSearch)
		case !f.Image && strings.HasSuffix(base, SuffixImage):
			f.Image = true
			base = strings.TrimSuffix(base, SuffixImage)
		case !f.Video && strings.HasSuffix(base, SuffixVideo):
			f.Video = true
			base = strings.TrimSuffix(base, SuffixVideo)
		default:
			if base == "" {
				return "", f, fmt.Errorf("model %q has no base name", model)
			}
			if f.Image && f.Video {
				return "", f, fmt.Errorf("model %q combines %s and %s", model, SuffixImage, SuffixVideo)
			}
			return base, f, nil
		}
	}
}
