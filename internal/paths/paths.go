// Package paths provides deterministic object-store key construction for
// the ingestion pipeline.
//
// This package provides pure utility functions that operate on primitives
// (dataset IDs, timestamps, year/month) rather than domain types: small,
// deterministic, collision-free string-transform functions with no I/O.
package paths

import (
	"fmt"
	"strings"
	"time"
)

const (
	datasetsRoot = "datasets"
	versionLayout = "2006-01-02T15-04-05"
)

// VersionTimestamp formats t as the sortable version_ts used throughout the
// key layout: UTC, "2006-01-02T15-04-05" with ':' replaced by '-' so object
// keys stay filesystem- and URL-safe while remaining lexicographically
// sortable in temporal order.
func VersionTimestamp(t time.Time) string {
	return t.UTC().Format(versionLayout)
}

func datasetRoot(datasetID string) string {
	return fmt.Sprintf("%s/%s", datasetsRoot, datasetID)
}

// ConfigKey returns the informational dataset config object key.
func ConfigKey(datasetID string) string {
	return fmt.Sprintf("%s/configs/config.yaml", datasetRoot(datasetID))
}

// PKIndexKey returns the primary-key index object key.
func PKIndexKey(datasetID string) string {
	return fmt.Sprintf("%s/index/keys.parquet", datasetRoot(datasetID))
}

// EventManifestKey returns the per-version event manifest key.
func EventManifestKey(datasetID, versionTS string) string {
	return fmt.Sprintf("%s/events/%s/manifest.json", datasetRoot(datasetID), versionTS)
}

// EventDataPrefix returns the prefix under which a version's partitioned
// event data lives.
func EventDataPrefix(datasetID, versionTS string) string {
	return fmt.Sprintf("%s/events/%s/data", datasetRoot(datasetID), versionTS)
}

// EventPartitionKey returns the key for one (year, month) event partition.
func EventPartitionKey(datasetID, versionTS string, year, month int) string {
	return fmt.Sprintf("%s/year=%04d/month=%02d/part-0.parquet",
		EventDataPrefix(datasetID, versionTS), year, month)
}

// EventUnpartitionedKey returns the key used when a source has no date
// column to partition on.
func EventUnpartitionedKey(datasetID, versionTS string) string {
	return fmt.Sprintf("%s/part-0.parquet", EventDataPrefix(datasetID, versionTS))
}

// EventVersionPrefix returns the prefix covering an entire version, used by
// the consistency guard's rebuild-from-pointer listing.
func EventVersionPrefix(datasetID, versionTS string) string {
	return fmt.Sprintf("%s/events/%s/", datasetRoot(datasetID), versionTS)
}

// EventsPrefix returns the prefix covering every version's event data,
// used as the consolidator's fallback listing root.
func EventsPrefix(datasetID string) string {
	return fmt.Sprintf("%s/events/", datasetRoot(datasetID))
}

// EventIndexKey returns the per-month event index key.
func EventIndexKey(datasetID string, year, month int) string {
	return fmt.Sprintf("%s/events/index/%04d/%02d/versions.json", datasetRoot(datasetID), year, month)
}

// PointerKey returns the CAS pointer object key.
func PointerKey(datasetID string) string {
	return fmt.Sprintf("%s/current/manifest.json", datasetRoot(datasetID))
}

// ProjectionKey returns the consolidated per-month projection key.
func ProjectionKey(datasetID string, year, month int) string {
	return fmt.Sprintf("%s/projections/windows/year=%04d/month=%02d/data.parquet", datasetRoot(datasetID), year, month)
}

// ProjectionTempKey returns the WAL staging key for a per-month projection.
func ProjectionTempKey(datasetID string, year, month int) string {
	return fmt.Sprintf("%s/projections/windows/year=%04d/month=%02d/.tmp/data.parquet", datasetRoot(datasetID), year, month)
}

// ProjectionTempPrefix returns the prefix cleaned up at the start of every
// consolidation attempt for a month.
func ProjectionTempPrefix(datasetID string, year, month int) string {
	return fmt.Sprintf("%s/projections/windows/year=%04d/month=%02d/.tmp/", datasetRoot(datasetID), year, month)
}

// ConsolidationManifestKey returns the per-month consolidation status
// manifest key.
func ConsolidationManifestKey(datasetID string, year, month int) string {
	return fmt.Sprintf("%s/projections/consolidation/%04d/%02d/manifest.json", datasetRoot(datasetID), year, month)
}

// LockKey returns the distributed-lock partition key for a dataset's
// pipeline run.
func LockKey(datasetID string) string {
	return fmt.Sprintf("pipeline:%s", datasetID)
}

// ParseEventPartitionSuffix extracts (year, month) from an event partition
// key, used by the consolidator's listing fallback when the per-month event
// index is absent. Returns false if key does not look
// like a year=/month=-partitioned event data key.
func ParseEventPartitionSuffix(key string) (year, month int, ok bool) {
	const (
		yearPrefix  = "year="
		monthPrefix = "month="
	)

	yi := strings.Index(key, yearPrefix)
	if yi < 0 {
		return 0, 0, false
	}

	mi := strings.Index(key, monthPrefix)
	if mi < 0 {
		return 0, 0, false
	}

	var y, m int

	if _, err := fmt.Sscanf(key[yi:], yearPrefix+"%04d", &y); err != nil {
		return 0, 0, false
	}

	if _, err := fmt.Sscanf(key[mi:], monthPrefix+"%02d", &m); err != nil {
		return 0, 0, false
	}

	return y, m, true
}
