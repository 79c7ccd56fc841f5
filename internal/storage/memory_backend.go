package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps counters in process. Used when no Redis is configured or
// reachable; counters are lost on restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	usage map[string]map[string]int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{usage: make(map[string]map[string]int64)}
}

func (m *MemoryBackend) Initialize(context.Context) error { return nil }

func (m *MemoryBackend) Close() error { return nil }

func (m *MemoryBackend) Health(context.Context) error { return nil }

func (m *MemoryBackend) IncrementUsage(_ context.Context, key string, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.usage[key]
	if !ok {
		entry = make(map[string]int64)
		m.usage[key] = entry
	}
	entry[field] += delta
	return nil
}

func (m *MemoryBackend) GetUsage(_ context.Context, key string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.usage[key]
	if !ok {
		return nil, &ErrNotFound{Key: key}
	}
	return copyFields(entry), nil
}

func (m *MemoryBackend) ResetUsage(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.usage, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) ListUsage(context.Context) (map[string]map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]int64, len(m.usage))
	for k, v := range m.usage {
		out[k] = copyFields(v)
	}
	return out, nil
}

func copyFields(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
