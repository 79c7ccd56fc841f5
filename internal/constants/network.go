package constants

import "time"

// HTTP Client 连接池配置
const (
	BaseMaxIdleConns        = 512
	BaseMaxIdleConnsPerHost = 128
	BaseIdleConnTimeout     = 90 * time.Second

	// Keep-Alive 设置
	DefaultKeepAlive = 30 * time.Second
)

// HTTP 超时配置
const (
	DefaultDialTimeout           = 10 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 60 * time.Second
	DefaultExpectContinueTimeout = 2 * time.Second
)
