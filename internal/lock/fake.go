package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeLease struct {
	holder    string
	expiresAt time.Time
}

// Fake is a thread-safe in-memory Locker: a mutex-guarded map of named
// leases with expiry.
type Fake struct {
	mutex  sync.Mutex
	leases map[string]fakeLease
	now    func() time.Time
}

// NewFake creates an empty in-memory locker using the real wall clock.
func NewFake() *Fake {
	return &Fake{leases: make(map[string]fakeLease), now: time.Now}
}

// SetClock overrides the fake's time source, letting tests exercise lease
// expiry deterministically.
func (f *Fake) SetClock(now func() time.Time) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.now = now
}

// Acquire implements Locker.
func (f *Fake) Acquire(_ context.Context, name string, ttl time.Duration) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	now := f.now()

	if lease, ok := f.leases[name]; ok && lease.expiresAt.After(now) {
		return "", ErrHeld
	}

	token := uuid.NewString()
	f.leases[name] = fakeLease{holder: token, expiresAt: now.Add(ttl)}

	return token, nil
}

// Release implements Locker.
func (f *Fake) Release(_ context.Context, name, token string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	lease, ok := f.leases[name]
	if !ok || lease.holder != token {
		return ErrNotHeld
	}

	delete(f.leases, name)

	return nil
}
