package consistency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datapipe-io/pipeline/internal/consistency"
	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/pipeline"
	"github.com/datapipe-io/pipeline/internal/publish"
)

func TestVerifyConsistentWhenNoPointerAndNoIndex(t *testing.T) {
	store := objectstore.NewFake()

	status, err := consistency.Verify(context.Background(), store, "ds1", consistency.DefaultTolerance)
	require.NoError(t, err)
	require.Equal(t, consistency.StatusConsistent, status)
}

func TestVerifyInconsistentWhenIndexExistsButNoPointer(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	require.NoError(t, publish.WritePKIndex(ctx, store, "ds1", []string{"a", "b"}))

	status, err := consistency.Verify(ctx, store, "ds1", consistency.DefaultTolerance)
	require.NoError(t, err)
	require.Equal(t, consistency.StatusInconsistent, status)
}

func TestVerifyConsistentWithinTolerance(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{{
		DatasetID:  "ds1",
		SourceKind: pipeline.SourceKindFile,
		ObsTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:    "v1",
	}}

	eventResult, err := events.WriteEvents(ctx, store, "ds1", "v1", rows)
	require.NoError(t, err)

	in := publish.Input{
		DatasetID:   "ds1",
		VersionTS:   "v1",
		PrimaryKeys: []string{"id"},
		EventResult: eventResult,
		RowsAdded:   1,
		// rows_total is recorded as len(UpdatedIndex) = 2
		UpdatedIndex: []string{"h1", "h2"},
	}

	_, err = publish.Publish(ctx, store, in)
	require.NoError(t, err)

	// one extra hash: index cardinality 3 against rows_total=2
	require.NoError(t, publish.WritePKIndex(ctx, store, "ds1", []string{"h1", "h2", "h3"}))

	status, err := consistency.Verify(ctx, store, "ds1", consistency.DefaultTolerance)
	require.NoError(t, err)
	require.Equal(t, consistency.StatusConsistent, status, "expected consistent within tolerance")
}

func TestVerifyInconsistentBeyondTolerance(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{{
		DatasetID:  "ds1",
		SourceKind: pipeline.SourceKindFile,
		ObsTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:    "v1",
	}}

	eventResult, err := events.WriteEvents(ctx, store, "ds1", "v1", rows)
	require.NoError(t, err)

	hugeIndex := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		hugeIndex = append(hugeIndex, "h")
	}

	in := publish.Input{
		DatasetID:    "ds1",
		VersionTS:    "v1",
		PrimaryKeys:  []string{"id"},
		EventResult:  eventResult,
		RowsAdded:    1,
		UpdatedIndex: []string{"h"},
	}

	_, err = publish.Publish(ctx, store, in)
	require.NoError(t, err)

	// rows_total=1 was recorded at publish; the live index now holds 50.
	require.NoError(t, publish.WritePKIndex(ctx, store, "ds1", hugeIndex))

	status, err := consistency.Verify(ctx, store, "ds1", consistency.DefaultTolerance)
	require.NoError(t, err)
	require.Equal(t, consistency.StatusInconsistent, status, "expected inconsistent beyond tolerance")
}

func TestRebuildFromPointerReconstructsIndex(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	rows := []pipeline.Row{
		{DatasetID: "ds1", SourceKind: pipeline.SourceKindFile, ObsTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Fields: map[string]string{"id": "a"}},
		{DatasetID: "ds1", SourceKind: pipeline.SourceKindFile, ObsTime: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Fields: map[string]string{"id": "b"}},
	}

	eventResult, err := events.WriteEvents(ctx, store, "ds1", "v1", rows)
	require.NoError(t, err)

	in := publish.Input{
		DatasetID:    "ds1",
		VersionTS:    "v1",
		PrimaryKeys:  []string{"id"},
		EventResult:  eventResult,
		RowsAdded:    2,
		UpdatedIndex: []string{"stale-hash-from-a-lost-write"},
	}

	_, err = publish.Publish(ctx, store, in)
	require.NoError(t, err)

	require.NoError(t, consistency.RebuildFromPointer(ctx, store, "ds1"))

	index, err := publish.ReadPKIndex(ctx, store, "ds1")
	require.NoError(t, err)
	require.Len(t, index, 2, "expected rebuilt index with 2 hashes")
}

func TestRebuildFromPointerWithNoPointerWritesEmptyIndex(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	require.NoError(t, consistency.RebuildFromPointer(ctx, store, "ds1"))

	index, err := publish.ReadPKIndex(ctx, store, "ds1")
	require.NoError(t, err)
	require.Empty(t, index)
}
