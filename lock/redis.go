package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/bastion/id"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process talking to the same Redis.
// Locks expire after TTL so a crashed holder cannot block a target forever.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// RedisOption configures the Redis locker.
type RedisOption func(*Redis)

// WithTTL sets how long a lock survives without release. Defaults to 10s.
func WithTTL(d time.Duration) RedisOption { return func(r *Redis) { r.ttl = d } }

// WithRetryInterval sets the polling interval while waiting. Defaults to 25ms.
func WithRetryInterval(d time.Duration) RedisOption { return func(r *Redis) { r.retry = d } }

// WithKeyPrefix sets the Redis key prefix. Defaults to "bastion:lock:".
func WithKeyPrefix(p string) RedisOption { return func(r *Redis) { r.prefix = p } }

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "bastion:lock:",
		ttl:    10 * time.Second,
		retry:  25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := id.NewLockToken().String()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must not depend on the caller's context, which may
			// already be cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// On failure the TTL reclaims the key.
			_ = releaseScript.Run(rctx, r.client, []string{k}, token).Err()
		})
	}, nil
}
