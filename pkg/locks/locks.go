// Package locks provides per-run advisory locking so only one engine worker
// advances a given run at a time.
package locks

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired indicates another worker currently holds the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires exclusive per-key locks. Acquire returns ErrNotAcquired
// without blocking when the key is held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock. Release is idempotent.
type Lock interface {
	Release(ctx context.Context) error
}
