package coverage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/coverage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "curricula:coverage:"

// addPairScript records a pair and bumps the mapped counter when the
// objective gets its first pair. Returns -1 when the framework is unseeded.
//
// KEYS: meta hash, pair set, objective hash. ARGV: pair, objective id.
var addPairScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
  return 0
end
if redis.call('HINCRBY', KEYS[3], ARGV[2], 1) == 1 then
  redis.call('HINCRBY', KEYS[1], 'mapped', 1)
end
return 1
`)

// RedisStore keeps coverage counters in Redis so every process shares them.
// A framework's keys share a hash tag and live in one cluster slot.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a RedisStore
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

type redisKeys struct {
	meta, pairs, objectives string
}

func (s *RedisStore) keys(tenantID, frameworkID uuid.UUID) redisKeys {
	base := fmt.Sprintf("%s{%s:%s}", s.keyPrefix, tenantID, frameworkID)
	return redisKeys{
		meta:       base + ":meta",
		pairs:      base + ":pairs",
		objectives: base + ":objectives",
	}
}

// seedRetries bounds how often a replacing seed retries when pairs change
// underneath it.
const seedRetries = 50

// Seed writes the framework's state in one transaction. Without replace the
// meta key is watched so a concurrent seed wins cleanly. With replace the pair
// set is watched too and its members are folded into the new state, so pairs
// added while a rebuild was reading the database survive the swap.
func (s *RedisStore) Seed(ctx context.Context, seed coverage.Seed, replace bool) (bool, error) {
	k := s.keys(seed.TenantID, seed.FrameworkID)

	written := false
	txf := func(tx *redis.Tx) error {
		state := newFrameworkState(seed)
		if !replace {
			n, err := tx.Exists(ctx, k.meta).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return nil
			}
		} else {
			members, err := tx.SMembers(ctx, k.pairs).Result()
			if err != nil {
				return err
			}
			for _, m := range members {
				key, err := parsePair(m)
				if err != nil {
					return err
				}
				state.add(key)
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k.meta, k.pairs, k.objectives)
			if len(state.pairs) > 0 {
				members := make([]any, 0, len(state.pairs))
				for key := range state.pairs {
					members = append(members, key.String())
				}
				pipe.SAdd(ctx, k.pairs, members...)
			}
			if len(state.objectives) > 0 {
				counts := make(map[string]any, len(state.objectives))
				for id, n := range state.objectives {
					counts[id.String()] = n
				}
				pipe.HSet(ctx, k.objectives, counts)
			}
			pipe.HSet(ctx, k.meta, "total", state.total, "mapped", state.mapped)
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}

	for attempt := 0; ; attempt++ {
		err := s.client.Watch(ctx, txf, k.meta, k.pairs)
		if errors.Is(err, redis.TxFailedErr) {
			if !replace {
				// another seeder wrote the framework first
				return false, nil
			}
			if attempt < seedRetries {
				continue
			}
		}
		if err != nil {
			return false, fmt.Errorf("seed coverage %s: %w", seed.FrameworkID, err)
		}
		return written, nil
	}
}

func parsePair(member string) (content.MappingKey, error) {
	contentPart, objectivePart, ok := strings.Cut(member, ":")
	if !ok {
		return content.MappingKey{}, fmt.Errorf("malformed coverage pair %q", member)
	}
	contentID, err := uuid.Parse(contentPart)
	if err != nil {
		return content.MappingKey{}, fmt.Errorf("malformed coverage pair %q: %w", member, err)
	}
	objectiveID, err := uuid.Parse(objectivePart)
	if err != nil {
		return content.MappingKey{}, fmt.Errorf("malformed coverage pair %q: %w", member, err)
	}
	return content.MappingKey{ContentID: contentID, ObjectiveID: objectiveID}, nil
}

// Has reports whether the framework has been seeded
func (s *RedisStore) Has(ctx context.Context, tenantID, frameworkID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, s.keys(tenantID, frameworkID).meta).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddPair records an accepted (content, objective) pair atomically
func (s *RedisStore) AddPair(ctx context.Context, tenantID, frameworkID uuid.UUID, key content.MappingKey) (bool, error) {
	k := s.keys(tenantID, frameworkID)
	res, err := addPairScript.Run(ctx, s.client,
		[]string{k.meta, k.pairs, k.objectives},
		key.String(), key.ObjectiveID.String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("add coverage pair: %w", err)
	}
	switch res {
	case -1:
		return false, coverage.ErrNotSeeded
	case 1:
		return true, nil
	}
	return false, nil
}

// Get returns the framework's counter
func (s *RedisStore) Get(ctx context.Context, tenantID, frameworkID uuid.UUID) (coverage.Counter, bool, error) {
	vals, err := s.client.HMGet(ctx, s.keys(tenantID, frameworkID).meta, "total", "mapped").Result()
	if err != nil {
		return coverage.Counter{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil {
		return coverage.Counter{}, false, nil
	}
	total, err := toInt(vals[0])
	if err != nil {
		return coverage.Counter{}, false, err
	}
	mapped, err := toInt(vals[1])
	if err != nil {
		return coverage.Counter{}, false, err
	}
	return coverage.Counter{
		TenantID:         tenantID,
		FrameworkID:      frameworkID,
		TotalObjectives:  total,
		MappedObjectives: mapped,
	}, true, nil
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.Atoi(x)
	case int64:
		return int(x), nil
	}
	return 0, fmt.Errorf("unexpected counter value %T", v)
}

var _ coverage.Store = (*RedisStore)(nil)
