package cache

import (
	"context"
	"time"
)

// Cache stores opaque payloads by key. Get returns a nil slice and no error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, content []byte, duration time.Duration) error
}
