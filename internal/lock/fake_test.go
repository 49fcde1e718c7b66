package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-io/pipeline/internal/lock"
)

func TestFakeAcquireThenHeldRejectsSecondCaller(t *testing.T) {
	f := lock.NewFake()
	ctx := context.Background()

	token, err := f.Acquire(ctx, "dataset-x", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = f.Acquire(ctx, "dataset-x", time.Minute)
	assert.ErrorIs(t, err, lock.ErrHeld)
}

func TestFakeReleaseThenReacquire(t *testing.T) {
	f := lock.NewFake()
	ctx := context.Background()

	token, err := f.Acquire(ctx, "dataset-x", time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.Release(ctx, "dataset-x", token))

	_, err = f.Acquire(ctx, "dataset-x", time.Minute)
	assert.NoError(t, err)
}

func TestFakeReleaseWithWrongTokenFails(t *testing.T) {
	f := lock.NewFake()
	ctx := context.Background()

	_, err := f.Acquire(ctx, "dataset-x", time.Minute)
	require.NoError(t, err)

	err = f.Release(ctx, "dataset-x", "bogus-token")
	assert.ErrorIs(t, err, lock.ErrNotHeld)
}

func TestFakeReleaseUnknownNameFails(t *testing.T) {
	f := lock.NewFake()

	err := f.Release(context.Background(), "never-acquired", "tok")
	assert.ErrorIs(t, err, lock.ErrNotHeld)
}

func TestFakeExpiredLeaseAllowsTakeover(t *testing.T) {
	f := lock.NewFake()
	ctx := context.Background()

	current := time.Now()
	f.SetClock(func() time.Time { return current })

	_, err := f.Acquire(ctx, "dataset-x", time.Second)
	require.NoError(t, err)

	current = current.Add(2 * time.Second)

	token2, err := f.Acquire(ctx, "dataset-x", time.Minute)
	require.NoError(t, err, "expected takeover to succeed")
	assert.NotEmpty(t, token2)
}
