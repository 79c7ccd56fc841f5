package models

// DefaultMediaModels may be requested with -t2i / -t2v.
var DefaultMediaModels = []string{
	"qwen-max-latest",
	"qwen-plus-latest",
	"qwen2.5-14b-instruct-1m",
	"qwen-turbo-latest",
	"qwen2.5-72b-instruct",
}

// DefaultBaseModels is served from /v1/models when the upstream list is unreachable.
func DefaultBaseModels() []string {
	return []string{
		"qwen-max-latest",
		"qwen-plus-latest",
		"qwen-turbo-latest",
		"qwq-32b",
		"qvq-72b-preview-0310",
		"qwen2.5-coder-32b-instruct",
		"qwen2.5-14b-instruct-1m",
		"qwen2.5-72b-instruct",
		"qwen2.5-vl-32b-instruct",
	}
}
