// Package cache implements the gateway's response cache: a Provider
// abstraction with a bounded in-memory LRU implementation and a Redis-
// backed distributed implementation that fails over to memory while
// disconnected.
package cache

import (
	"context"
	"time"
)

// Lock is a held distributed lock handle; Release must be idempotent.
type Lock interface {
	Release(ctx context.Context) error
}

// Provider is the cache backend contract every response-caching component
// (proxy engine, SQL metadata cache) programs against.
type Provider interface {
	// Get returns the cached bytes for key, or (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Remove deletes key, if present.
	Remove(ctx context.Context, key string) error
	// RemovePrefix deletes every key starting with prefix, used for
	// endpoint-scoped cache invalidation on a mutating request.
	RemovePrefix(ctx context.Context, prefix string) error
	// AcquireLock implements acquire-or-skip semantics for serializing
	// writes to one cache key: returns (nil, false, nil) if another
	// holder has the lock and wait elapses before acquiring it.
	AcquireLock(ctx context.Context, key string, expiry, wait, retry time.Duration) (Lock, bool, error)
}
