package cache

import (
	"context"
	"time"
)

// Store is a best-effort TTL key/value store. Implemented by the memory
// backend (dev, tests) and the Redis backend (prod).
//
// Get returns (value, true, nil) on a hit, (nil, false, nil) on a clean
// miss, and (nil, false, err) on a transport failure so the caller can log
// and treat it as a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
