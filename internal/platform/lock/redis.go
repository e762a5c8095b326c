package lock

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseTimeout = 5 * time.Second

// releaseScript deletes the lock key only when the caller still owns it, so
// a lease that expired and was re-acquired elsewhere is never removed.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker is a Locker backed by a single Redis server using
// SET NX PX leases.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker wraps client as a Locker. keyPrefix namespaces every lock
// key (for example "storefront:lock:").
func NewRedisLocker(client *redis.Client, keyPrefix string) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		return nil, fmt.Errorf("redis lock key prefix is required")
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}, nil
}

// WithLock implements Locker.
func (l *RedisLocker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if err := ValidateArgs(name, ttl, fn); err != nil {
		return false, err
	}
	key := l.keyPrefix + strings.TrimSpace(name)
	owner := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire %s: %w", name, err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		// Release with a fresh context so a canceled run still lets go of
		// the lease.
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := l.client.Eval(releaseCtx, releaseScript, []string{key}, owner).Err(); err != nil {
			log.Printf("lock: release %s: %v", name, err)
		}
	}()

	return true, RunProtected(ctx, fn)
}
