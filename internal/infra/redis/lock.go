package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/electoral-digital/print-engine/internal/idgen"
	"github.com/electoral-digital/print-engine/internal/lock"
)

const defaultLockTTL = 5 * time.Minute

// releaseScript deletes the key only if it still holds our token, so an
// expired lock reacquired by another instance is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*RedisLocker)(nil)

// RedisLocker is a distributed lock backed by a single SET NX key with a
// TTL. The TTL bounds how long a crashed holder can block other instances.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
	token  func() string
	script *goredis.Script
}

func NewRedisLocker(client *goredis.Client, ttl time.Duration) (*RedisLocker, error) {
	return newRedisLocker(client, ttl, idgen.Token)
}

func newRedisLocker(client *goredis.Client, ttl time.Duration, tokenFn func() string) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if tokenFn == nil {
		tokenFn = idgen.Token
	}

	return &RedisLocker{
		client: client,
		ttl:    ttl,
		token:  tokenFn,
		script: releaseScript,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("locker is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return nil, fmt.Errorf("lock name is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := "lock:" + normalized
	token := l.token()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", normalized, err)
	}
	if !acquired {
		return nil, lock.ErrNotAcquired
	}

	release := func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %q: %w", normalized, err)
		}
		return nil
	}
	return release, nil
}
