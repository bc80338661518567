package coverage

import (
	"fmt"

	"github.com/curricula/backend/internal/domain/coverage"
	"github.com/curricula/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewStore selects the coverage store named by cfg.Store. The Redis store
// requires a client.
func NewStore(cfg config.CoverageConfig, client redis.UniversalClient) (coverage.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("coverage store %q requires a redis client", cfg.Store)
		}
		return NewRedisStore(client, cfg.KeyPrefix), nil
	}
	return nil, fmt.Errorf("unknown coverage store %q", cfg.Store)
}
