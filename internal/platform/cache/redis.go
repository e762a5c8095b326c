package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize bounds how many keys one SCAN page returns during
// prefix deletion.
const scanBatchSize = 200

// Redis is a Cache backed by a Redis server. All keys are stored under
// keyPrefix so multiple deployments can share one server.
type Redis struct {
	client    *redis.Client
	keyPrefix string
}

var _ Cache = (*Redis)(nil)

// NewRedis wraps client as a Cache. keyPrefix namespaces every key and must
// be non-empty (for example "storefront:cache:").
func NewRedis(client *redis.Client, keyPrefix string) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		return nil, fmt.Errorf("redis cache key prefix is required")
	}
	return &Redis{client: client, keyPrefix: keyPrefix}, nil
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value under key for ttl. A zero or negative ttl never expires.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes one key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return ErrEmptyPrefix
	}
	return r.deleteMatching(ctx, r.keyPrefix+prefix+"*")
}

// Clear removes every key under this cache's key prefix.
func (r *Redis) Clear(ctx context.Context) error {
	return r.deleteMatching(ctx, r.keyPrefix+"*")
}

func (r *Redis) deleteMatching(ctx context.Context, match string) error {
	iter := r.client.Scan(ctx, 0, match, scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", match, err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete batch: %w", err)
		}
	}
	return nil
}
