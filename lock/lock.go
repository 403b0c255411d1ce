// Package lock serializes mutations of a single target. Every write to an
// actor's assignment or a role's catalog entry runs while holding the lock
// for that key, so two operators editing the same target never interleave.
package lock

import (
	"context"
	"sync"
)

// Locker acquires exclusive per-key locks.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned function
	// releases the lock and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process keyed mutex. Keys are reference counted so idle
// keys do not accumulate.
type Local struct {
	mu   sync.Mutex
	keys map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*slot)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.keys[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.keys[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.keys, key)
	}
}

// size returns the number of tracked keys.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
