package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datapipe-io/pipeline/internal/lock"
	"github.com/datapipe-io/pipeline/internal/testsupport"
)

func TestDynamoLockerAcquireRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	stack := testsupport.StartLocalStack(ctx, t)

	const table = "pipeline-locks"
	stack.CreateLockTable(ctx, t, table)

	locker, err := lock.NewDynamoLocker(ctx, lock.Config{TableName: table, Region: "us-east-1", Endpoint: stack.Endpoint})
	if err != nil {
		t.Fatalf("NewDynamoLocker: %v", err)
	}

	token, err := locker.Acquire(ctx, "dataset-x", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := locker.Acquire(ctx, "dataset-x", time.Minute); !errors.Is(err, lock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}

	if err := locker.Release(ctx, "dataset-x", token); err != nil {
		t.Fatalf("release: %v", err)
	}

	if _, err := locker.Acquire(ctx, "dataset-x", time.Minute); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestDynamoLockerStaleLeaseAllowsTakeover(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	stack := testsupport.StartLocalStack(ctx, t)

	const table = "pipeline-locks-stale"
	stack.CreateLockTable(ctx, t, table)

	locker, err := lock.NewDynamoLocker(ctx, lock.Config{TableName: table, Region: "us-east-1", Endpoint: stack.Endpoint})
	if err != nil {
		t.Fatalf("NewDynamoLocker: %v", err)
	}

	if _, err := locker.Acquire(ctx, "dataset-y", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	time.Sleep(2 * time.Second)

	if _, err := locker.Acquire(ctx, "dataset-y", time.Minute); err != nil {
		t.Fatalf("expected takeover after expiry, got %v", err)
	}
}
