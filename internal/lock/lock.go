package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned by Acquire when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards work that must run on at most one instance at a time,
// such as a batching run.
type Locker interface {
	// Acquire takes the named lock, returning a release function on success
	// and ErrNotAcquired when it is held elsewhere.
	Acquire(ctx context.Context, name string) (release func(context.Context) error, err error)
}
