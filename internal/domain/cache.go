package domain

import (
	"context"
	"time"
)

// RateLimiter is a request budget shared by every process calling the same
// data source.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock. It expires after its TTL unless extended.
type Lease interface {
	// Extend resets the TTL. It returns ErrLockLost once the key has expired
	// or belongs to another holder.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release gives the lock up. It may be called more than once.
	Release()
}
