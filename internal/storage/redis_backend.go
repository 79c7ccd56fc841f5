package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key this service writes.
const DefaultRedisPrefix = "qwen2api:"

// RedisBackend keeps usage counters in Redis hashes, one hash per key.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend creates a new Redis storage backend
func NewRedisBackend(addr, password string, db int, prefix string) (*RedisBackend, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisBackend{client: client, prefix: prefix}, nil
}

// Initialize tests Redis connection
func (r *RedisBackend) Initialize(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes Redis connection
func (r *RedisBackend) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Health checks redis availability
func (r *RedisBackend) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) usageKey(key string) string {
	return r.prefix + "usage:" + key
}

// IncrementUsage increments a usage counter
func (r *RedisBackend) IncrementUsage(ctx context.Context, key string, field string, delta int64) error {
	return r.client.HIncrBy(ctx, r.usageKey(key), field, delta).Err()
}

// GetUsage retrieves usage statistics
func (r *RedisBackend) GetUsage(ctx context.Context, key string) (map[string]int64, error) {
	data, err := r.client.HGetAll(ctx, r.usageKey(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ErrNotFound{Key: key}
	}
	return parseFields(data), nil
}

// ResetUsage clears usage statistics
func (r *RedisBackend) ResetUsage(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.usageKey(key)).Err()
}

// ListUsage lists all usage records
func (r *RedisBackend) ListUsage(ctx context.Context) (map[string]map[string]int64, error) {
	pattern := r.prefix + "usage:*"
	result := make(map[string]map[string]int64)
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		result[strings.TrimPrefix(key, r.prefix+"usage:")] = parseFields(data)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// 非数字字段按 0 处理
func parseFields(data map[string]string) map[string]int64 {
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, _ := strconv.ParseInt(v, 10, 64)
		out[k] = n
	}
	return out
}
