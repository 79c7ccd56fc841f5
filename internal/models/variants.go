package models

// Variants expands a base model into the names advertised by /v1/models.
// Media suffixes are only offered when mediaAllowed is set.
func Variants(base string, mediaAllowed bool) []string {
	out := []string{
		base,
		base + SuffixThinking,
		base + SuffixSearch,
		base + SuffixThinking + SuffixSearch,
	}
	if mediaAllowed {
		out = append(out, base+SuffixImage, base+SuffixVideo)
	}
	return out
}

// ExpandAll expands every base model, deduplicating while keeping first-seen order.
func ExpandAll(bases []string, mediaModels []string) []string {
	media := make(map[string]struct{}, len(mediaModels))
	for _, m := range mediaModels {
		media[m] = struct{}{}
	}
	seen := make(map[string]struct{}, len(bases)*6)
	out := make([]string, 0, len(bases)*6)
	for _, base := range bases {
		if base == "" {
			continue
		}
		_, allowed := media[base]
		for _, v := range Variants(base, allowed) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
