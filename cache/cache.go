package cache

import (
	"context"
	"time"
)

// Cache stores JSON serialisable values with a per entry TTL.
type Cache interface {
	// Get decodes the cached value into dest and reports whether the key was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Close() error
}
