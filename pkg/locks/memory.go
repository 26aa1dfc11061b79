package locks

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with an in-process keyed mutex. Suitable for
// single-instance deployments; multi-instance deployments use RedisLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemoryLocker creates an in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire takes the key or returns ErrNotAcquired if it is held and its TTL
// has not lapsed. Expired holds are reclaimed.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	expiry, exists := l.held[key]
	if exists && expiry.After(now) {
		return nil, ErrNotAcquired
	}

	l.held[key] = now.Add(ttl)

	return &memoryLock{locker: l, key: key}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	once   sync.Once
}

func (l *memoryLock) Release(_ context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.key)
		l.locker.mu.Unlock()
	})

	return nil
}
