package qwen

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/monitoring"
	"qwen2api-go/internal/monitoring/tracing"
	"qwen2api-go/internal/upstream"
)

const (
	pathChatCompletions = "/api/chat/completions"
	pathModels          = "/api/models"
	pathTaskStatus      = "/api/v1/tasks/status/"
	pathFiles           = "/api/v1/files/"
)

// Client talks to the Qwen chat web API. It only carries tokens it is given;
// reporting outcomes to the account pool is the caller's job.
type Client struct {
	cfg config.UpstreamConfig
	cli *http.Client
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func New(cfg config.UpstreamConfig) *Client {
	tr := &http.Transport{
		Proxy: getProxyFunc(cfg.ProxyURL),
		DialContext: (&net.Dialer{
			Timeout:   durationOrDefault(cfg.DialTimeoutSec, constants.DefaultDialTimeout),
			KeepAlive: constants.DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   durationOrDefault(cfg.TLSHandshakeTimeoutSec, constants.DefaultTLSHandshakeTimeout),
		ResponseHeaderTimeout: durationOrDefault(cfg.ResponseHeaderTimeoutSec, constants.DefaultResponseHeaderTimeout),
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          constants.BaseMaxIdleConns,
		MaxIdleConnsPerHost:   constants.BaseMaxIdleConnsPerHost,
		IdleConnTimeout:       constants.BaseIdleConnTimeout,
	}
	return &Client{cfg: cfg, cli: &http.Client{Transport: tr}}
}

// NewWithHTTPClient is used by tests to point the client at an httptest server.
func NewWithHTTPClient(cfg config.UpstreamConfig, hc *http.Client) *Client {
	return &Client{cfg: cfg, cli: hc}
}

// getProxyFunc returns appropriate proxy function based on configuration
func getProxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsedURL, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsedURL)
		}
	}
	return http.ProxyFromEnvironment
}

// Complete sends a non-streaming chat request and returns the buffered JSON body.
func (c *Client) Complete(ctx context.Context, body []byte, token string) ([]byte, error) {
	resp, err := c.do(ctx, "chat.complete", http.MethodPost, pathChatCompletions, body, token)
	if err != nil {
		return nil, err
	}
	data, err := upstream.ReadAll(resp, 0)
	if err != nil {
		return nil, unreachable("chat.complete", err)
	}
	return data, nil
}

// Stream sends a streaming chat request. The caller owns and must close the body.
func (c *Client) Stream(ctx context.Context, body []byte, token string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, "chat.stream", http.MethodPost, pathChatCompletions, body, token)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do issues one upstream call. On success the response body is open; on any
// error it has already been drained and closed.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, token string) (*http.Response, error) {
	return c.send(ctx, op, method, path, body, "", token)
}

// send is do with an explicit Content-Type; empty keeps the configured one.
func (c *Client) send(ctx context.Context, op, method, path string, body []byte, contentType, token string) (*http.Response, error) {
	target := c.cfg.BaseURL + path
	ctx, span := tracing.StartSpan(ctx, "upstream/qwen", "Qwen."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", target),
		))
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	c.applyHeaders(req, token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.cli.Do(req)
	monitoring.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	monitoring.UpstreamRequestsTotal.WithLabelValues(op, upstream.StatusClass(resp, err)).Inc()
	if err != nil {
		tracing.Fail(span, err)
		return nil, unreachable(op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := upstream.ReadAll(resp, constants.MaxUpstreamErrorBody)
		rejected := &RejectedError{Op: op, Status: resp.StatusCode, Body: payload}
		tracing.Fail(span, rejected)
		return nil, rejected
	}
	return resp, nil
}
