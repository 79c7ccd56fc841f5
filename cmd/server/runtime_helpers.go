package main

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/credential"
	store "qwen2api-go/internal/storage"
)

// buildStorageBackend opens the configured usage backend and verifies it answers.
func buildStorageBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch backend {
	case "", "memory":
		mb := store.NewMemoryBackend()
		if err := mb.Initialize(ctx); err != nil {
			return nil, err
		}
		return mb, nil
	case "redis":
		rb, err := store.NewRedisBackend(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
		if err != nil {
			return nil, err
		}
		if err := rb.Initialize(ctx); err != nil {
			_ = rb.Close()
			return nil, err
		}
		return rb, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

// openStorage builds the configured backend and falls back to memory when it is
// unreachable, so a missing redis never blocks startup.
func openStorage(ctx context.Context, cfg *config.Config) store.Backend {
	backend, err := buildStorageBackend(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.Storage.Backend).
			Warn("Primary storage backend initialization failed; falling back to memory backend")
		backend = store.NewMemoryBackend()
	}
	label := store.Label(backend)
	log.WithField("backend", label).Info("usage storage ready")
	return store.WithInstrumentation(backend, label)
}

// tokenSources lists where pooled account tokens come from, in merge order.
func tokenSources(cfg *config.Config) []credential.TokenSource {
	sources := []credential.TokenSource{
		credential.NewStaticSource("config", cfg.Auth.AccountTokens),
	}
	if path := strings.TrimSpace(cfg.Auth.AccountTokensFile); path != "" {
		sources = append(sources, credential.NewFileSource(path))
	}
	return sources
}

// buildPool returns nil when pooling is disabled. With API_KEY set it always
// returns a pool, empty if no token loaded, so shared-key requests are refused
// with pool_exhausted instead of being forwarded upstream as a token.
func buildPool(ctx context.Context, cfg *config.Config, opts ...credential.Option) *credential.Pool {
	if !cfg.PoolEnabled() {
		log.Info("account pool disabled; clients must send their own upstream token")
		return nil
	}
	tokens := credential.LoadTokens(ctx, tokenSources(cfg)...)
	if len(tokens) == 0 {
		log.Warn("API_KEY is set but no account tokens were loaded; shared-key requests will fail")
	} else {
		log.WithField("accounts", len(tokens)).Info("account pool loaded")
	}
	return credential.NewPool(tokens, opts...)
}
