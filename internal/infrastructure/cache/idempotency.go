package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultIdempotencyPrefix = "curricula:event:idempotency:"

// NewIdempotencyStore picks Redis when a client is configured. The in-memory
// fallback only deduplicates within one process.
func NewIdempotencyStore(client redis.UniversalClient, log *zap.Logger) shared.IdempotencyStore {
	if client == nil {
		log.Warn("Redis disabled, job events are deduplicated per process only")
		return NewInMemoryIdempotencyStore()
	}
	log.Info("Using Redis idempotency store")
	return NewRedisIdempotencyStore(client, "")
}

// RedisIdempotencyStore keeps handled event ids as expiring keys so every
// server instance sees the same set.
type RedisIdempotencyStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisIdempotencyStore does not take ownership of rdb.
func NewRedisIdempotencyStore(rdb redis.UniversalClient, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{rdb: rdb, prefix: prefix}
}

// MarkProcessed is a single SET NX, so concurrent deliveries of one event
// see exactly one true.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fresh, err := s.rdb.SetNX(ctx, s.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", key, err)
	}
	return fresh, nil
}

func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisIdempotencyStore) Close() error { return nil }
