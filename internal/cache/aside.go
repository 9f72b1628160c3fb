package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// GetOrCompute is the cache-aside read path. A live entry is decoded and
// returned without invoking compute; on a miss or after expiry, compute runs
// and its result is stored with a fresh TTL. A failing cache backend degrades
// to a direct compute and is never surfaced to the caller. Concurrent callers
// may compute the same key twice; last write wins, which is harmless because
// results derive from the same underlying data.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, found, err := c.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed, computing directly", "key", key, "error", err)
	} else if found {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		// A corrupt entry is treated as a miss and overwritten below.
		slog.Warn("cache entry corrupt, recomputing", "key", key)
	}

	result, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("encoding cache value: %w", err)
	}
	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}

	return result, nil
}
