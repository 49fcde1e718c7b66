// Package lock provides the dataset-level mutual-exclusion primitive that
// keeps two concurrent pipeline runs for the same dataset from racing each
// other's delta computation and pointer publish.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned by Acquire when another run already holds the lock.
var ErrHeld = errors.New("lock: already held")

// ErrNotHeld is returned by Release when the caller's token does not match
// the live holder, which happens if the lease expired and someone else
// acquired it in the meantime.
var ErrNotHeld = errors.New("lock: not held by this token")

// Locker is the dataset-lock surface. Implementations: *DynamoLocker
// (production) and *Fake (tests).
type Locker interface {
	// Acquire attempts to take the named lock for ttl, returning a token
	// that Release must present. It returns ErrHeld if another holder's
	// lease has not yet expired.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, err error)

	// Release gives up the lock, identified by the token Acquire returned.
	// Releasing a lock whose lease already expired and was reacquired by
	// someone else returns ErrNotHeld; callers treat this as advisory
	// (the run already completed its own work under the lease it held).
	Release(ctx context.Context, name, token string) error
}
