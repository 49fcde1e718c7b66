package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

func TestListPartitionsForMonthFallsBackToListing(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{row(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))}

	if _, err := events.WriteEvents(ctx, store, "ds1", "v1", rows); err != nil {
		t.Fatalf("WriteEvents v1: %v", err)
	}

	if _, err := events.WriteEvents(ctx, store, "ds1", "v2", rows); err != nil {
		t.Fatalf("WriteEvents v2: %v", err)
	}

	keys, err := events.ListPartitionsForMonth(ctx, store, "ds1", 2024, 3)
	if err != nil {
		t.Fatalf("ListPartitionsForMonth: %v", err)
	}

	if len(keys) != 2 {
		t.Fatalf("expected 2 partitions across versions, got %v", keys)
	}

	versions := events.VersionsFromPartitionKeys("ds1", keys)
	if len(versions) != 2 || versions[0] != "v1" || versions[1] != "v2" {
		t.Fatalf("expected [v1 v2], got %v", versions)
	}
}

func TestListAllVersionsExcludesIndexKeys(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{row(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))}

	if _, err := events.WriteEvents(ctx, store, "ds1", "v1", rows); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	versions, err := events.ListAllVersions(ctx, store, "ds1")
	if err != nil {
		t.Fatalf("ListAllVersions: %v", err)
	}

	if len(versions) != 1 || versions[0] != "v1" {
		t.Fatalf("expected [v1], got %v", versions)
	}
}

func TestListVersionPartitionsOnlyReturnsParquetFiles(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{
		row(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		row(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}

	if _, err := events.WriteEvents(ctx, store, "ds1", "v1", rows); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	partitions, err := events.ListVersionPartitions(ctx, store, "ds1", "v1")
	if err != nil {
		t.Fatalf("ListVersionPartitions: %v", err)
	}

	if len(partitions) != 2 {
		t.Fatalf("expected 2 partitions, got %v", partitions)
	}
}
