package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/datapipe-io/pipeline/internal/delta"
	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// timestampLayout matches the manifest's human-readable, sortable
// timestamp format used elsewhere in this codebase.
const timestampLayout = time.RFC3339

// Consolidate rebuilds one month's projection (year, month): if the prior
// consolidation manifest is already completed and this month was not just
// touched by the publish that triggered this call, it is a no-op. Otherwise
// it runs the full WAL sequence: clean temp, mark in_progress, enumerate and
// read every event partition for the month (index fast path or listing
// fallback), dedupe by primary key keeping the last occurrence in event
// order, stage to .tmp, atomically move into place, and mark completed.
//
// On any failure in steps 3-6 the manifest is left (or set) as in_progress;
// the next invocation re-enters and redoes the month from events, which is
// safe because projections are fully regenerable.
func Consolidate(ctx context.Context, store objectstore.Client, datasetID string, year, month int, primaryKeys []string, touched bool) error {
	prior, err := readManifest(ctx, store, datasetID, year, month)
	if err != nil {
		return err
	}

	if prior != nil && prior.Status == StatusCompleted && !touched {
		return nil
	}

	if err := cleanupTemp(ctx, store, datasetID, year, month); err != nil {
		return err
	}

	if err := writeManifest(ctx, store, datasetID, year, month, StatusInProgress); err != nil {
		return err
	}

	partitionKeys, err := enumeratePartitions(ctx, store, datasetID, year, month)
	if err != nil {
		return err
	}

	rows, err := readAndDedupe(ctx, store, partitionKeys, primaryKeys)
	if err != nil {
		return err
	}

	if err := writeTemp(ctx, store, datasetID, year, month, rows); err != nil {
		return err
	}

	if err := moveFromTemp(ctx, store, datasetID, year, month); err != nil {
		return err
	}

	if err := writeManifest(ctx, store, datasetID, year, month, StatusCompleted); err != nil {
		return err
	}

	_ = cleanupTemp(ctx, store, datasetID, year, month) // best-effort

	return nil
}

func cleanupTemp(ctx context.Context, store objectstore.Client, datasetID string, year, month int) error {
	prefix := paths.ProjectionTempPrefix(datasetID, year, month)

	keys, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list temp projection %s: %w", prefix, err)
	}

	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete temp projection %s: %w", key, err)
		}
	}

	return nil
}

func readManifest(ctx context.Context, store objectstore.Client, datasetID string, year, month int) (*ManifestDoc, error) {
	key := paths.ConsolidationManifestKey(datasetID, year, month)

	obj, err := store.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read consolidation manifest %s: %w", key, err)
	}

	var doc ManifestDoc
	if err := objectstore.DecodeJSON(obj.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode consolidation manifest %s: %w", key, err)
	}

	return &doc, nil
}

func writeManifest(ctx context.Context, store objectstore.Client, datasetID string, year, month int, status Status) error {
	key := paths.ConsolidationManifestKey(datasetID, year, month)

	doc := ManifestDoc{
		DatasetID: datasetID,
		Year:      year,
		Month:     month,
		Status:    status,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	}

	body, err := objectstore.EncodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encode consolidation manifest %s: %w", key, err)
	}

	if _, err := store.Put(ctx, key, body, objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write consolidation manifest %s: %w", key, err)
	}

	return nil
}

func enumeratePartitions(ctx context.Context, store objectstore.Client, datasetID string, year, month int) ([]string, error) {
	versions, ok, err := events.VersionsForMonth(ctx, store, datasetID, year, month)
	if err != nil {
		return nil, err
	}

	if ok {
		keys := make([]string, 0, len(versions))
		for _, v := range versions {
			keys = append(keys, paths.EventPartitionKey(datasetID, v, year, month))
		}

		return keys, nil
	}

	keys, err := events.ListPartitionsForMonth(ctx, store, datasetID, year, month)
	if err != nil {
		return nil, err
	}

	versionsFromListing := events.VersionsFromPartitionKeys(datasetID, keys)
	if err := events.RebuildEventIndex(ctx, store, datasetID, year, month, versionsFromListing); err != nil {
		return nil, err
	}

	return keys, nil
}

func readAndDedupe(ctx context.Context, store objectstore.Client, partitionKeys []string, primaryKeys []string) ([]pipeline.Row, error) {
	// partitionKeys must already be in version_ts ascending (== event time)
	// order; both enumeration paths above produce that ordering.
	sorted := make([]string, len(partitionKeys))
	copy(sorted, partitionKeys)
	sort.Strings(sorted)

	byHash := make(map[string]pipeline.Row)

	var order []string

	for _, key := range sorted {
		rows, err := events.ReadPartition(ctx, store, key)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			hash := delta.KeyHash(row, primaryKeys)
			if _, seen := byHash[hash]; !seen {
				order = append(order, hash)
			}

			byHash[hash] = row // later occurrence wins
		}
	}

	result := make([]pipeline.Row, 0, len(order))
	for _, hash := range order {
		result = append(result, byHash[hash])
	}

	return result, nil
}

func writeTemp(ctx context.Context, store objectstore.Client, datasetID string, year, month int, rows []pipeline.Row) error {
	key := paths.ProjectionTempKey(datasetID, year, month)

	parquetRows := make([]*events.ParquetRow, 0, len(rows))
	for _, row := range rows {
		parquetRows = append(parquetRows, events.ToParquetRow(row))
	}

	body, err := objectstore.EncodeParquet(parquetRows)
	if err != nil {
		return fmt.Errorf("encode temp projection %s: %w", key, err)
	}

	if _, err := store.Put(ctx, key, body, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("write temp projection %s: %w", key, err)
	}

	return nil
}

func moveFromTemp(ctx context.Context, store objectstore.Client, datasetID string, year, month int) error {
	tempKey := paths.ProjectionTempKey(datasetID, year, month)
	finalKey := paths.ProjectionKey(datasetID, year, month)

	if err := store.Copy(ctx, tempKey, finalKey); err != nil {
		return fmt.Errorf("move projection %s -> %s: %w", tempKey, finalKey, err)
	}

	if err := store.Delete(ctx, tempKey); err != nil {
		return fmt.Errorf("delete temp projection %s: %w", tempKey, err)
	}

	return nil
}

// ReadProjection reads and decodes the consolidated projection for
// (year, month).
func ReadProjection(ctx context.Context, store objectstore.Client, datasetID string, year, month int) ([]pipeline.Row, error) {
	key := paths.ProjectionKey(datasetID, year, month)

	obj, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read projection %s: %w", key, err)
	}

	parquetRows, err := objectstore.DecodeParquet[events.ParquetRow](obj.Body)
	if err != nil {
		return nil, fmt.Errorf("decode projection %s: %w", key, err)
	}

	rows := make([]pipeline.Row, 0, len(parquetRows))
	for _, pr := range parquetRows {
		rows = append(rows, events.FromParquetRow(pr))
	}

	return rows, nil
}
