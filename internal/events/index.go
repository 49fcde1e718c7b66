package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
)

// indexTimestampLayout is the human-readable, sortable timestamp format
// used for last_updated, matching the rest of this codebase's wire docs.
const indexTimestampLayout = time.RFC3339

// indexDoc is the wire form of events/index/Y/M/versions.json.
type indexDoc struct {
	DatasetID   string   `json:"dataset_id"`
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	Versions    []string `json:"versions"`
	LastUpdated string   `json:"last_updated"`
	EventCount  int      `json:"event_count"`
}

// appendToEventIndex reads the per-month event index if present, adds
// version_ts if absent, and writes it back.
func appendToEventIndex(ctx context.Context, store objectstore.Client, datasetID, versionTS string, year, month int) error {
	key := paths.EventIndexKey(datasetID, year, month)

	doc, err := readEventIndex(ctx, store, key)
	if err != nil {
		return err
	}

	for _, v := range doc.Versions {
		if v == versionTS {
			return nil
		}
	}

	doc.DatasetID = datasetID
	doc.Year = year
	doc.Month = month
	doc.Versions = append(doc.Versions, versionTS)
	sort.Strings(doc.Versions)
	doc.EventCount = len(doc.Versions)
	doc.LastUpdated = time.Now().UTC().Format(indexTimestampLayout)

	body, err := objectstore.EncodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encode event index %s: %w", key, err)
	}

	if _, err := store.Put(ctx, key, body, objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write event index %s: %w", key, err)
	}

	return nil
}

func readEventIndex(ctx context.Context, store objectstore.Client, key string) (indexDoc, error) {
	obj, err := store.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return indexDoc{}, nil
	}

	if err != nil {
		return indexDoc{}, fmt.Errorf("read event index %s: %w", key, err)
	}

	var doc indexDoc
	if err := objectstore.DecodeJSON(obj.Body, &doc); err != nil {
		return indexDoc{}, fmt.Errorf("decode event index %s: %w", key, err)
	}

	return doc, nil
}

// VersionsForMonth returns the versions known to have a partition for
// (year, month), per the event index fast path. The second return value
// is false when the index entry is absent, signaling callers to fall
// back to listing.
func VersionsForMonth(ctx context.Context, store objectstore.Client, datasetID string, year, month int) ([]string, bool, error) {
	key := paths.EventIndexKey(datasetID, year, month)

	obj, err := store.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read event index %s: %w", key, err)
	}

	var doc indexDoc
	if err := objectstore.DecodeJSON(obj.Body, &doc); err != nil {
		return nil, false, fmt.Errorf("decode event index %s: %w", key, err)
	}

	return doc.Versions, true, nil
}

// RebuildEventIndex reconstructs and writes the per-month event index from
// an authoritative list of versions known (via listing) to touch
// (year, month). Used when the fast-path index is missing and the
// consolidator has just derived the version list from a prefix listing.
func RebuildEventIndex(ctx context.Context, store objectstore.Client, datasetID string, year, month int, versions []string) error {
	sorted := make([]string, len(versions))
	copy(sorted, versions)
	sort.Strings(sorted)

	key := paths.EventIndexKey(datasetID, year, month)

	doc := indexDoc{
		DatasetID:   datasetID,
		Year:        year,
		Month:       month,
		Versions:    sorted,
		EventCount:  len(sorted),
		LastUpdated: time.Now().UTC().Format(indexTimestampLayout),
	}

	body, err := objectstore.EncodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encode event index %s: %w", key, err)
	}

	if _, err := store.Put(ctx, key, body, objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("rebuild event index %s: %w", key, err)
	}

	return nil
}
