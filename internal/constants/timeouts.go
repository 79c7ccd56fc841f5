package constants

import "time"

const (
	// UpstreamStreamTimeout enforces max duration for streaming requests.
	UpstreamStreamTimeout = 180 * time.Second
	// UpstreamGenerateTimeout enforces max duration for non-stream requests.
	UpstreamGenerateTimeout = 180 * time.Second
	// UpstreamStatusTimeout bounds a single media task status query.
	UpstreamStatusTimeout = 30 * time.Second
	// ServerShutdownTimeout bounds graceful HTTP server shutdown.
	ServerShutdownTimeout = 30 * time.Second
	// ServerReadHeaderTimeout bounds how long a client may take to send request headers.
	ServerReadHeaderTimeout = 10 * time.Second
	// PoolGaugeInterval controls how often credential pool gauges are sampled.
	PoolGaugeInterval = 15 * time.Second
	// ModelListCacheTTL is the default lifetime of the cached upstream model list.
	ModelListCacheTTL = 10 * time.Minute
)
