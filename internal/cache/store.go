package cache

import (
	"context"
	"time"
)

// Store counts events per key within a sliding expiry window.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}
