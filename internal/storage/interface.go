package storage

import (
	"context"
)

// Backend stores usage counters. Each key owns a set of integer fields.
type Backend interface {
	// Initialize sets up the storage backend
	Initialize(ctx context.Context) error

	// Close closes the storage backend
	Close() error

	// Health checks if the storage backend is healthy
	Health(ctx context.Context) error

	// Usage stats operations
	IncrementUsage(ctx context.Context, key string, field string, delta int64) error
	GetUsage(ctx context.Context, key string) (map[string]int64, error)
	ResetUsage(ctx context.Context, key string) error
	ListUsage(ctx context.Context) (map[string]map[string]int64, error)
}

// ErrNotFound is returned when a key is not found
type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return "key not found: " + e.Key
}

// ErrNotSupported is returned when an operation is not supported
type ErrNotSupported struct {
	Operation string
}

func (e *ErrNotSupported) Error() string {
	return "operation not supported: " + e.Operation
}

// Label names the backend for logs and metrics.
func Label(backend Backend) string {
	switch b := backend.(type) {
	case *instrumentedBackend:
		return b.label
	case *RedisBackend:
		return "redis"
	case *MemoryBackend:
		return "memory"
	default:
		return "unknown"
	}
}
