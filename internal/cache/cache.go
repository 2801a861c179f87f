package cache

import (
	"context"
	"time"
)

// Cache is the injectable result-cache boundary shared by the
// analyzers. Entries are last-writer-wins and written only after a
// full result has been computed.
type Cache interface {
	Get(ctx context.Context, key string, value any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, prefix string) error
}
