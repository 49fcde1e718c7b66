package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
)

func TestVersionsForMonthMissingIndexReturnsNotOK(t *testing.T) {
	store := objectstore.NewFake()

	versions, ok, err := events.VersionsForMonth(context.Background(), store, "ds1", 2024, 3)
	require.NoError(t, err)
	require.False(t, ok, "expected ok=false for missing index")
	require.Nil(t, versions)
}

func TestRebuildEventIndexThenVersionsForMonth(t *testing.T) {
	store := objectstore.NewFake()
	ctx := context.Background()

	require.NoError(t, events.RebuildEventIndex(ctx, store, "ds1", 2024, 3, []string{"v2", "v1"}))

	versions, ok, err := events.VersionsForMonth(ctx, store, "ds1", 2024, 3)
	require.NoError(t, err)
	require.True(t, ok, "expected index present")
	require.Equal(t, []string{"v1", "v2"}, versions)
}
