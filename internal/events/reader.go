package events

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// ReadPartition reads and decodes one event partition file.
func ReadPartition(ctx context.Context, store objectstore.Client, key string) ([]pipeline.Row, error) {
	obj, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read partition %s: %w", key, err)
	}

	parquetRows, err := objectstore.DecodeParquet[ParquetRow](obj.Body)
	if err != nil {
		return nil, fmt.Errorf("decode partition %s: %w", key, err)
	}

	rows := make([]pipeline.Row, 0, len(parquetRows))
	for _, pr := range parquetRows {
		rows = append(rows, FromParquetRow(pr))
	}

	return rows, nil
}

// ListPartitionsForMonth lists every event partition key across all
// versions for (year, month) via a prefix-filtered listing, the fallback
// path consolidation uses when there is no cheaper index to consult.
// Keys are returned in lexicographic (== temporal) order of their
// version_ts.
func ListPartitionsForMonth(ctx context.Context, store objectstore.Client, datasetID string, year, month int) ([]string, error) {
	all, err := store.List(ctx, paths.EventsPrefix(datasetID))
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", datasetID, err)
	}

	var matched []string

	for _, key := range all {
		y, m, ok := paths.ParseEventPartitionSuffix(key)
		if !ok || y != year || m != month {
			continue
		}

		matched = append(matched, key)
	}

	sort.Strings(matched)

	return matched, nil
}

// VersionsFromPartitionKeys extracts each key's version_ts segment (the
// path component right after "events/"), deduplicated, for rebuilding a
// per-month event index from a listing.
func VersionsFromPartitionKeys(datasetID string, keys []string) []string {
	prefix := paths.EventsPrefix(datasetID)

	seen := make(map[string]struct{}, len(keys))

	var versions []string

	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)

		idx := strings.Index(rest, "/")
		if idx < 0 {
			continue
		}

		v := rest[:idx]
		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}

		versions = append(versions, v)
	}

	sort.Strings(versions)

	return versions
}

// ListVersionPartitions lists every partition key written under one
// version, used by the consistency guard's rebuild_from_pointer.
func ListVersionPartitions(ctx context.Context, store objectstore.Client, datasetID, versionTS string) ([]string, error) {
	keys, err := store.List(ctx, paths.EventVersionPrefix(datasetID, versionTS))
	if err != nil {
		return nil, fmt.Errorf("list version %s: %w", versionTS, err)
	}

	var partitions []string

	for _, key := range keys {
		if strings.HasSuffix(key, ".parquet") {
			partitions = append(partitions, key)
		}
	}

	sort.Strings(partitions)

	return partitions, nil
}

// ListAllVersions lists every distinct version_ts that has written at
// least one event partition, in ascending (lexicographic == temporal)
// order — "lexicographic ordering corresponds to temporal ordering given
// the timestamp key format".
func ListAllVersions(ctx context.Context, store objectstore.Client, datasetID string) ([]string, error) {
	keys, err := store.List(ctx, paths.EventsPrefix(datasetID))
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", datasetID, err)
	}

	var partitionKeys []string

	for _, key := range keys {
		if strings.HasSuffix(key, ".parquet") {
			partitionKeys = append(partitionKeys, key)
		}
	}

	return VersionsFromPartitionKeys(datasetID, partitionKeys), nil
}
