package store

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache with expiry. It is deliberately
// a narrow interface boundary over the same key space as the source of
// truth, so the cache backend can be swapped or stubbed independently in
// tests.
//
// Get returns ErrCacheMiss for an absent or expired key. Any other error is
// a transport failure; callers on the read path are expected to degrade to
// the source of truth rather than fail the request.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key that starts with prefix. Implementations
	// must enumerate keys with the backend's native prefix scan, never a full
	// key dump.
	DeleteByPrefix(ctx context.Context, prefix string) error

	Exists(ctx context.Context, key string) (bool, error)
}
