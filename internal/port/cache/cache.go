// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the port interface for key-value caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fetch is a read-through helper: it returns the cached value for key or
// calls load and stores its result for ttl. Cache errors are logged and
// treated as misses so a broken cache never fails a read. A nil Cache
// always calls load.
func Fetch(ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return load(ctx)
	}

	val, ok, err := c.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache get failed", "key", key, "error", err)
	}
	if ok {
		return val, nil
	}

	val, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, val, ttl); err != nil {
		slog.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
	return val, nil
}
