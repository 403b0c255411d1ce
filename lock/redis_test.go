package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	opts = append([]RedisOption{WithRetryInterval(5 * time.Millisecond)}, opts...)
	return NewRedis(client, opts...), mr
}

func TestRedisLockUnlock(t *testing.T) {
	l, mr := newTestRedis(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "actor:42")
	require.NoError(t, err)
	assert.True(t, mr.Exists("bastion:lock:actor:42"))

	token, err := mr.Get("bastion:lock:actor:42")
	require.NoError(t, err)
	assert.Contains(t, token, "lock_")

	unlock()
	assert.False(t, mr.Exists("bastion:lock:actor:42"))
}

func TestRedisLockBlocksUntilReleased(t *testing.T) {
	l, _ := newTestRedis(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "role:Support")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(ctx, "role:Support")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestRedisLockContextCancel(t *testing.T) {
	l, _ := newTestRedis(t)

	unlock, err := l.Lock(context.Background(), "actor:7")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "actor:7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRedisUnlockKeepsForeignToken(t *testing.T) {
	l, mr := newTestRedis(t, WithTTL(time.Second))
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "actor:9")
	require.NoError(t, err)

	// Simulate expiry and takeover by another process.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("bastion:lock:actor:9", "lock_other"))

	unlock()
	got, err := mr.Get("bastion:lock:actor:9")
	require.NoError(t, err)
	assert.Equal(t, "lock_other", got)
}

func TestRedisKeyPrefix(t *testing.T) {
	l, mr := newTestRedis(t, WithKeyPrefix("custom:"))

	unlock, err := l.Lock(context.Background(), "actor:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("custom:actor:1"))
	unlock()
}

func TestRedisUnlockConcurrentCallsReleaseOnce(t *testing.T) {
	l, mr := newTestRedis(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "actor:7")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, mr.Exists("bastion:lock:actor:7"))

	next, err := l.Lock(ctx, "actor:7")
	require.NoError(t, err)
	defer next()

	unlock()
	assert.True(t, mr.Exists("bastion:lock:actor:7"), "a spent unlock must not release the next holder")
}
