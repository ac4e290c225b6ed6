package cache

import (
	"context"
	"sync"
	"time"
)

type heldLock struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryRunLock keeps locks in process memory. It only guards runs of a
// single instance.
type InMemoryRunLock struct {
	mu    sync.Mutex
	locks map[string]heldLock
	next  uint64
	now   func() time.Time
}

// NewInMemoryRunLock creates an empty lock table.
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		locks: make(map[string]heldLock),
		now:   time.Now,
	}
}

// TryLock takes key unless a live lock holds it. Expired locks are taken over.
func (l *InMemoryRunLock) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.locks[key]; ok && now.Before(h.expiresAt) {
		return nil, false, nil
	}
	l.next++
	token := l.next
	l.locks[key] = heldLock{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.locks[key]; ok && h.token == token {
			delete(l.locks, key)
		}
		return nil
	}, true, nil
}

// Held reports whether key is locked right now.
func (l *InMemoryRunLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.locks[key]
	return ok && l.now().Before(h.expiresAt)
}
