package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// GetOrLoad returns the JSON-decoded value cached under key, calling load and
// caching its result on a miss.
//
// Cache read and write failures are non-fatal: the loader result is returned
// either way and write errors are logged. A cached entry that no longer
// decodes into T is dropped and reloaded.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}

	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}
		if err := c.Delete(ctx, key); err != nil {
			log.Printf("cache: drop corrupt key %s: %v", key, err)
		}
	}

	value, err := load(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache: marshal key %s: %v", key, err)
		return value, nil
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		log.Printf("cache: write key %s: %v", key, err)
	}
	return value, nil
}
