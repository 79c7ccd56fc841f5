package storage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"qwen2api-go/internal/monitoring"
	"qwen2api-go/internal/monitoring/tracing"
)

// WithInstrumentation wraps a backend with tracing and metrics instrumentation.
func WithInstrumentation(inner Backend, label string) Backend {
	if inner == nil {
		return nil
	}
	if label == "" {
		label = Label(inner)
	}
	return &instrumentedBackend{Backend: inner, label: label}
}

type instrumentedBackend struct {
	Backend
	label string
}

func (i *instrumentedBackend) IncrementUsage(ctx context.Context, key string, field string, delta int64) error {
	return i.instrument(ctx, "increment_usage", func(ctx context.Context) error {
		return i.Backend.IncrementUsage(ctx, key, field, delta)
	})
}

func (i *instrumentedBackend) GetUsage(ctx context.Context, key string) (map[string]int64, error) {
	var result map[string]int64
	err := i.instrument(ctx, "get_usage", func(ctx context.Context) error {
		var innerErr error
		result, innerErr = i.Backend.GetUsage(ctx, key)
		return innerErr
	})
	return result, err
}

func (i *instrumentedBackend) ResetUsage(ctx context.Context, key string) error {
	return i.instrument(ctx, "reset_usage", func(ctx context.Context) error {
		return i.Backend.ResetUsage(ctx, key)
	})
}

func (i *instrumentedBackend) ListUsage(ctx context.Context) (map[string]map[string]int64, error) {
	var result map[string]map[string]int64
	err := i.instrument(ctx, "list_usage", func(ctx context.Context) error {
		var innerErr error
		result, innerErr = i.Backend.ListUsage(ctx)
		return innerErr
	})
	return result, err
}

func (i *instrumentedBackend) instrument(ctx context.Context, operation string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(ctx, "storage", i.label+"/"+operation)
	span.SetAttributes(
		attribute.String("storage.backend", i.label),
		attribute.String("storage.operation", operation),
	)
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	result := "ok"
	if err != nil {
		tracing.Fail(span, err)
		result = "error"
		if _, missing := err.(*ErrNotFound); missing {
			result = "not_found"
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	monitoring.StorageOperationsTotal.WithLabelValues(i.label, operation, result).Inc()
	monitoring.StorageOperationDuration.WithLabelValues(i.label, operation).Observe(duration.Seconds())
	return err
}
