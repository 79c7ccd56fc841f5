package constants

const (
	// StreamReadBufferSize is the size of a single upstream stream read (32KB).
	StreamReadBufferSize = 32 * 1024
	// MaxPendingFragmentSize caps an unparsed frame fragment before it is discarded (4MB).
	MaxPendingFragmentSize = 4 * 1024 * 1024
	// MaxUpstreamErrorBody caps how much of an upstream error body is retained (64KB).
	MaxUpstreamErrorBody = 64 * 1024
	// MaxUploadImageSize caps an image fetched or decoded for upload (10MB).
	MaxUploadImageSize = 10 * 1024 * 1024
)
