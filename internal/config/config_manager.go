package config

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"qwen2api-go/internal/events"
)

// Manager holds the current configuration and swaps it when the config file changes.
// Readers call Current on every request so reloads take effect without restarts for
// the settings that are read per request (stream output, task policies, media models).
type Manager struct {
	path      string
	current   atomic.Pointer[Config]
	mu        sync.Mutex
	onChange  []func(*Config)
	publisher events.Publisher
}

// NewManager wraps an already loaded configuration.
func NewManager(path string, cfg *Config) *Manager {
	m := &Manager{path: path}
	m.current.Store(cfg)
	return m
}

// NewStatic returns a manager that never reloads; used by tests and embedded setups.
func NewStatic(cfg *Config) *Manager {
	return NewManager("", cfg)
}

func (m *Manager) Current() *Config {
	return m.current.Load()
}

func (m *Manager) Path() string { return m.path }

// SetEventPublisher wires reload notifications onto the event hub.
func (m *Manager) SetEventPublisher(p events.Publisher) {
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// OnChange registers a callback invoked after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Reload re-reads the file and environment. Invalid configurations are rejected and
// the previous one stays active.
func (m *Manager) Reload(ctx context.Context) error {
	next, err := Load(m.path)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	prev := m.current.Swap(next)
	if prev != nil && (prev.Addr() != next.Addr() || prev.Server.BasePath != next.Server.BasePath) {
		log.Warn("listen address and base path changes take effect after restart")
	}

	m.mu.Lock()
	callbacks := append([]func(*Config){}, m.onChange...)
	publisher := m.publisher
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(next)
	}
	if publisher != nil {
		publisher.Publish(ctx, events.TopicConfigReloaded, next.Stream, map[string]string{"path": m.path})
	}
	log.WithField("path", m.path).Info("configuration reloaded")
	return nil
}
