package cache

import (
	"context"
	"time"
)

// Store represents a shared key/value store used for idempotency claims.
type Store interface {
	// Claim stores key only if it is absent or expired. It reports whether
	// the caller now owns the key.
	Claim(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
