package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

func row(obsTime time.Time) pipeline.Row {
	return pipeline.Row{
		DatasetID:  "ds1",
		Provider:   "acme",
		SourceKind: pipeline.SourceKindFile,
		ObsTime:    obsTime,
		ObsDate:    obsTime,
		Value:      1.0,
		Version:    "2024-01-01T00-00-00",
	}
}

func TestWriteEventsGroupsByMonthAndUpdatesIndex(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{
		row(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		row(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)),
		row(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)),
	}

	result, err := events.WriteEvents(ctx, store, "ds1", "2024-01-01T00-00-00", rows)
	if err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	if len(result.EventKeys) != 2 {
		t.Fatalf("expected 2 partitions, got %d: %v", len(result.EventKeys), result.EventKeys)
	}

	if len(result.AffectedMonths) != 2 {
		t.Fatalf("expected 2 affected months, got %d", len(result.AffectedMonths))
	}

	janVersions, ok, err := events.VersionsForMonth(ctx, store, "ds1", 2024, 1)
	if err != nil || !ok {
		t.Fatalf("expected january index present, ok=%v err=%v", ok, err)
	}

	if len(janVersions) != 1 || janVersions[0] != "2024-01-01T00-00-00" {
		t.Fatalf("unexpected january index: %v", janVersions)
	}

	febPartition := result.Partitions[1]
	if febPartition.RowCount != 2 {
		t.Fatalf("expected feb partition with 2 rows, got %d", febPartition.RowCount)
	}

	partitionRows, err := events.ReadPartition(ctx, store, result.Partitions[0].Key)
	if err != nil {
		t.Fatalf("ReadPartition: %v", err)
	}

	if len(partitionRows) != 1 {
		t.Fatalf("expected 1 row in jan partition, got %d", len(partitionRows))
	}
}

func TestWriteEventsNoDateColumnWritesUnpartitionedFile(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{
		{DatasetID: "ds1", Provider: "acme", SourceKind: pipeline.SourceKindFile, Value: 1.0, Version: "v1"},
		{DatasetID: "ds1", Provider: "acme", SourceKind: pipeline.SourceKindFile, Value: 2.0, Version: "v1"},
	}

	result, err := events.WriteEvents(ctx, store, "ds1", "v1", rows)
	if err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	if len(result.AffectedMonths) != 0 {
		t.Fatalf("expected no affected months for date-less rows, got %v", result.AffectedMonths)
	}

	wantKey := "datasets/ds1/events/v1/data/part-0.parquet"
	if len(result.EventKeys) != 1 || result.EventKeys[0] != wantKey {
		t.Fatalf("expected un-partitioned key %s, got %v", wantKey, result.EventKeys)
	}

	if len(result.Partitions) != 1 || result.Partitions[0].RowCount != 2 {
		t.Fatalf("expected 1 partition with 2 rows, got %+v", result.Partitions)
	}

	partitionRows, err := events.ReadPartition(ctx, store, wantKey)
	if err != nil {
		t.Fatalf("ReadPartition: %v", err)
	}

	if len(partitionRows) != 2 {
		t.Fatalf("expected 2 rows in un-partitioned file, got %d", len(partitionRows))
	}
}

func TestWriteEventsMixedDatedAndDatelessRowsSplitsFiles(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{
		row(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		{DatasetID: "ds1", Provider: "acme", SourceKind: pipeline.SourceKindFile, Value: 9.0, Version: "v1"},
	}

	result, err := events.WriteEvents(ctx, store, "ds1", "v1", rows)
	if err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	if len(result.AffectedMonths) != 1 || result.AffectedMonths[0].Year != 2024 || result.AffectedMonths[0].Month != 1 {
		t.Fatalf("expected exactly the dated row's month as affected, got %v", result.AffectedMonths)
	}

	if len(result.EventKeys) != 2 {
		t.Fatalf("expected 2 files (one partitioned, one un-partitioned), got %v", result.EventKeys)
	}
}

func TestWriteEventsEmptyRowsReturnsEmptyResult(t *testing.T) {
	store := objectstore.NewFake()

	result, err := events.WriteEvents(context.Background(), store, "ds1", "v1", nil)
	if err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	if len(result.EventKeys) != 0 {
		t.Fatalf("expected no keys written, got %v", result.EventKeys)
	}
}

func TestWriteEventsRollsBackOnIndexUpdateFailure(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{
		row(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
	}

	// WriteEvents never sets IfAbsent/IfMatch on its own puts, so the only
	// way to force a failure after a successful partition write is the
	// index-update step: corrupt the index object so decode fails.
	indexKey := "datasets/ds1/events/index/2024/01/versions.json"
	if _, err := store.Put(ctx, indexKey, []byte("{not json"), objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	_, err := events.WriteEvents(ctx, store, "ds1", "v2", rows)
	if err == nil {
		t.Fatal("expected error from corrupted index")
	}

	partitionKey := "datasets/ds1/events/v2/data/year=2024/month=01/part-0.parquet"
	if _, getErr := store.Get(ctx, partitionKey); !errors.Is(getErr, objectstore.ErrNotFound) {
		t.Fatalf("expected partition to be rolled back, got err=%v", getErr)
	}
}
