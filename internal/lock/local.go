package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLock is an in-process keyed lock with TTL, for single-node deployments
type LocalLock struct {
	mu      sync.Mutex
	held    map[string]time.Time
	nowFunc func() time.Time
}

// NewLocalLock creates a LocalLock
func NewLocalLock() *LocalLock {
	return &LocalLock{
		held:    make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

// Acquire takes the named lock unless it is held and not yet expired
func (l *LocalLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if expires, ok := l.held[name]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

// Release frees the named lock
func (l *LocalLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Extend pushes out the TTL of a lock that is still held
func (l *LocalLock) Extend(_ context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if expires, ok := l.held[name]; !ok || !now.Before(expires) {
		return fmt.Errorf("lock %s is not held", name)
	}
	l.held[name] = now.Add(ttl)
	return nil
}
