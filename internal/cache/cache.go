package cache

import (
	"context"
	"time"
)

// Stats reports entry counts for operator visibility. TotalEntries includes
// expired entries not yet swept; ActiveEntries only live ones.
type Stats struct {
	TotalEntries  int `json:"total_entries"`
	ActiveEntries int `json:"active_entries"`
}

// Cache is a read-through accelerator in front of the durable store.
// Absence is not an error: Get reports it via ok=false, and the mutating
// operations never fail on missing keys.
type Cache interface {
	Get(ctx context.Context, key string) (value any, ok bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// InvalidatePrefix removes every key starting with prefix and returns
	// how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) int
	Clear(ctx context.Context)
	Stats(ctx context.Context) Stats
}
