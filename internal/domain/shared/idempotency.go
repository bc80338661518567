package shared

import (
	"context"
	"time"
)

// IdempotencyStore records handled event ids so a redelivered job event is
// not counted twice.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports whether this call made
	// the claim.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig tunes event deduplication; TTL bounds how long a
// redelivery is still recognized.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, TTL: 24 * time.Hour}
}
