package middleware

import (
	"context"
	"time"

	"github.com/wintent/plugin-config/internal/cache"
)

// CacheRateStore adapts a shared cache.Store to RateStore.
type CacheRateStore struct {
	store cache.Store
}

// NewCacheRateStore returns a RateStore backed by store, or nil when store is nil.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &CacheRateStore{store: store}
}

// Increment implements RateStore.
func (s *CacheRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	count, ttl, err := s.store.IncrementWithTTL(ctx, "ratelimit:"+key, window)
	if err != nil {
		return 0, 0, err
	}
	return int(count), ttl, nil
}
