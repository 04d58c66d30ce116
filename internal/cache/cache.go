// Package cache provides keyed caches for computed results.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores values of type T by key. A miss is (zero, false, nil).
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, v T) error
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and sizes a cache backend.
type Options struct {
	Backend   string // "memory" or "redis"
	Size      int
	TTL       time.Duration
	RedisAddr string
	Prefix    string
}

// New builds the backend described by opts.
func New[T any](opts Options) (Cache[T], error) {
	switch opts.Backend {
	case "", "memory":
		return NewLRU[T](opts.Size, opts.TTL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		return NewRedis[T](client, opts.Prefix, opts.TTL), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
	}
}
