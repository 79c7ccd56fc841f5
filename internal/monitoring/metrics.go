package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwen2api_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qwen2api_http_inflight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 账号池指标
	PoolCredentials = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qwen2api_pool_credentials",
			Help: "Number of pooled upstream accounts by state",
		},
		[]string{"state"},
	)

	PoolAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_pool_acquisitions_total",
			Help: "Total number of account acquisitions from the pool",
		},
		[]string{"result"},
	)

	CredentialQuarantinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_credential_quarantines_total",
			Help: "Total number of accounts taken out of rotation",
		},
		[]string{"credential"},
	)

	// 上游API调用指标
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_upstream_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"operation", "status_class"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwen2api_upstream_request_duration_seconds",
			Help:    "Upstream API latency until response headers, in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// 流式转换指标
	StreamChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qwen2api_stream_chunks_total",
			Help: "Total number of chunks written to streaming clients",
		},
	)

	StreamFramesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qwen2api_stream_frames_dropped_total",
			Help: "Upstream frames that never became parseable",
		},
	)

	// 媒体任务指标
	MediaTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_media_tasks_total",
			Help: "Media generation tasks by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	MediaPollAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_media_poll_attempts_total",
			Help: "Media task status queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// 存储指标
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_storage_operations_total",
			Help: "Usage storage operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwen2api_storage_operation_duration_seconds",
			Help:    "Usage storage operation latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwen2api_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	RateLimitKeysGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qwen2api_rate_limit_keys",
			Help: "Number of tracked rate limit keys",
		},
	)
)

// StatusClass buckets an HTTP status into 2xx/4xx/5xx; non-positive codes are "error".
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	switch code / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	default:
		return "5xx"
	}
}
