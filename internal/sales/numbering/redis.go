package numbering

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisAllocator allocates sequences with INCR, which Redis executes atomically.
// A key missing from Redis is seeded once from the document tables.
type RedisAllocator struct {
	client    redis.UniversalClient
	seeder    Seeder
	keyPrefix string
}

// NewRedisAllocator constructs the allocator. seeder may be nil for a fresh store.
func NewRedisAllocator(client redis.UniversalClient, seeder Seeder) *RedisAllocator {
	return &RedisAllocator{client: client, seeder: seeder, keyPrefix: "odyssey:seq"}
}

func (a *RedisAllocator) key(docType DocumentType, year int) string {
	return fmt.Sprintf("%s:%s:%d", a.keyPrefix, docType, year)
}

// Allocate returns the next sequence for the key.
func (a *RedisAllocator) Allocate(ctx context.Context, docType DocumentType, year int) (int64, error) {
	if _, err := docType.Prefix(); err != nil {
		return 0, err
	}
	key := a.key(docType, year)

	exists, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("numbering: redis exists %s: %w", key, err)
	}
	if exists == 0 {
		var seed int64
		if a.seeder != nil {
			seed, err = a.seeder.HighestSequence(ctx, docType, year)
			if err != nil {
				return 0, err
			}
		}
		// Losing the SETNX race means another caller already seeded the key.
		if err := a.client.SetNX(ctx, key, seed, 0).Err(); err != nil {
			return 0, fmt.Errorf("numbering: redis seed %s: %w", key, err)
		}
	}

	seq, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("numbering: redis incr %s: %w", key, err)
	}
	return seq, nil
}
