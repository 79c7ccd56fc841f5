package constants

// Build metadata, overridden with -ldflags "-X qwen2api-go/internal/constants.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
