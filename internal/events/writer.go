package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// partitionWriters bounds how many event partitions are written concurrently
// within a single run.
const partitionWriters = 4

// MonthKey identifies one (year, month) partition.
type MonthKey struct {
	Year  int
	Month int
}

// Result is what WriteEvents hands back to the publisher: the keys it wrote
// (for the manifest and for rollback by the caller if publish fails later),
// per-partition row counts, and the months touched (consumed by the
// consolidator).
type Result struct {
	EventKeys      []string
	Partitions     []PartitionInfo
	AffectedMonths []MonthKey
}

// unpartitionedMonth is the sentinel MonthKey for rows whose obs_time and
// obs_date are both zero: no real calendar date has year 0, so this key
// never collides with an actual (year, month) group. Rows keyed here go to
// the single un-partitioned event file instead of a year=/month=
// partition, and are excluded from AffectedMonths since there is no month
// to consolidate.
var unpartitionedMonth = MonthKey{}

// WriteEvents groups rows by (year, month) derived
// from obs_time (falling back to obs_date, then to the un-partitioned
// group for rows with neither), writes one Parquet partition per non-empty
// group, and appends version_ts to each touched month's event index. On any
// failure it deletes every partition this call wrote (best-effort) before
// returning the error — no partially acknowledged set of event files is
// ever left behind by a successful return.
func WriteEvents(ctx context.Context, store objectstore.Client, datasetID, versionTS string, rows []pipeline.Row) (Result, error) {
	groups := groupByMonth(rows)

	if len(groups) == 0 {
		return Result{}, nil
	}

	// groupKeys is sorted so partition order is deterministic across runs.
	groupKeys := make([]MonthKey, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}

	sort.Slice(groupKeys, func(i, j int) bool {
		if groupKeys[i].Year != groupKeys[j].Year {
			return groupKeys[i].Year < groupKeys[j].Year
		}

		return groupKeys[i].Month < groupKeys[j].Month
	})

	written, partitions, err := writePartitions(ctx, store, datasetID, versionTS, groupKeys, groups)
	if err != nil {
		rollback(context.Background(), store, written)

		return Result{}, err
	}

	affectedMonths := make([]MonthKey, 0, len(groupKeys))

	for _, month := range groupKeys {
		if month == unpartitionedMonth {
			continue
		}

		if err := appendToEventIndex(ctx, store, datasetID, versionTS, month.Year, month.Month); err != nil {
			rollback(context.Background(), store, written)

			return Result{}, err
		}

		affectedMonths = append(affectedMonths, month)
	}

	return Result{EventKeys: written, Partitions: partitions, AffectedMonths: affectedMonths}, nil
}

func groupByMonth(rows []pipeline.Row) map[MonthKey][]pipeline.Row {
	groups := make(map[MonthKey][]pipeline.Row)

	for _, row := range rows {
		ts := row.ObsTime
		if ts.IsZero() {
			ts = row.ObsDate
		}

		key := unpartitionedMonth
		if !ts.IsZero() {
			key = MonthKey{Year: ts.Year(), Month: int(ts.Month())}
		}

		groups[key] = append(groups[key], row)
	}

	return groups
}

func writePartitions(
	ctx context.Context,
	store objectstore.Client,
	datasetID, versionTS string,
	order []MonthKey,
	groups map[MonthKey][]pipeline.Row,
) ([]string, []PartitionInfo, error) {
	var (
		mu         sync.Mutex
		written    []string
		partitions []PartitionInfo
		firstErr   error
	)

	sem := make(chan struct{}, partitionWriters)

	var wg sync.WaitGroup

	for _, month := range order {
		month := month

		wg.Add(1)

		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			key := paths.EventPartitionKey(datasetID, versionTS, month.Year, month.Month)
			if month == unpartitionedMonth {
				key = paths.EventUnpartitionedKey(datasetID, versionTS)
			}

			rows := groups[month]

			parquetRows := make([]*ParquetRow, 0, len(rows))
			for _, row := range rows {
				parquetRows = append(parquetRows, ToParquetRow(row))
			}

			body, err := objectstore.EncodeParquet(parquetRows)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("encode partition %s: %w", key, err)
				}
				mu.Unlock()

				return
			}

			if _, err := store.Put(ctx, key, body, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("write partition %s: %w", key, err)
				}
				mu.Unlock()

				return
			}

			// Only append to written after the put acknowledges success,
			// so rollback never targets a key that was never actually
			// created.
			mu.Lock()
			written = append(written, key)
			partitions = append(partitions, PartitionInfo{Key: key, Year: month.Year, Month: month.Month, RowCount: len(rows)})
			mu.Unlock()
		}()
	}

	wg.Wait()

	// written/partitions accumulate in completion order, not groupKeys
	// order; re-sort by key so a successful manifest is deterministic
	// regardless of goroutine scheduling.
	sort.Strings(written)
	sort.Slice(partitions, func(i, j int) bool { return partitions[i].Key < partitions[j].Key })

	return written, partitions, firstErr
}

// rollback best-effort deletes every key in written, ignoring individual
// delete failures since the version was never published and will simply
// be orphaned if a delete itself fails.
func rollback(ctx context.Context, store objectstore.Client, written []string) {
	for _, key := range written {
		_ = store.Delete(ctx, key)
	}
}
