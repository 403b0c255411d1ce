// Package cache provides in-process storage for last known-good trusted
// operator records, consulted only while the store is unreachable.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bastion/assignment"
)

// Memory is an in-memory record cache with optional maximum age.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	maxAge  time.Duration
	maxSize int
	now     func() time.Time
}

type entry struct {
	record   *assignment.Assignment
	storedAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithMaxAge discards records older than d. Zero keeps records until they
// are replaced.
func WithMaxAge(d time.Duration) MemoryOption {
	return func(m *Memory) { m.maxAge = d }
}

// WithMaxSize sets the maximum number of records kept.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		maxSize: 1024,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Remember stores a copy of a, replacing any previous record of the actor.
func (m *Memory) Remember(_ context.Context, a *assignment.Assignment) {
	if a == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[a.ActorID]; !ok && len(m.entries) >= m.maxSize {
		m.evictOldest()
	}
	m.entries[a.ActorID] = &entry{record: a.Clone(), storedAt: m.now()}
}

// Recall returns a copy of the stored record of actorID.
func (m *Memory) Recall(_ context.Context, actorID string) (*assignment.Assignment, bool) {
	m.mu.RLock()
	e, ok := m.entries[actorID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.maxAge > 0 && m.now().Sub(e.storedAt) > m.maxAge {
		m.mu.Lock()
		delete(m.entries, actorID)
		m.mu.Unlock()
		return nil, false
	}
	return e.record.Clone(), true
}

// Forget removes the record of actorID.
func (m *Memory) Forget(_ context.Context, actorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, actorID)
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictOldest removes the oldest record. Must hold write lock.
func (m *Memory) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range m.entries {
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	delete(m.entries, oldestKey)
}
