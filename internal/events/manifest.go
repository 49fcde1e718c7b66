package events

import "github.com/datapipe-io/pipeline/internal/pipeline"

// PartitionInfo describes one written event partition file.
type PartitionInfo struct {
	Key      string `json:"key"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	RowCount int    `json:"row_count"`
}

// Manifest is the per-version event manifest, `events/<version_ts>/manifest.json`.
type Manifest struct {
	DatasetID   string            `json:"dataset_id"`
	VersionTS   string            `json:"version_ts"`
	Partitions  []PartitionInfo   `json:"partitions"`
	PrimaryKeys []string          `json:"primary_keys"`
	Source      SourceFingerprint `json:"source_fingerprint"`
	Outputs     Outputs           `json:"outputs"`
}

// SourceFingerprint is the manifest's wire form of pipeline.SourceFingerprint.
type SourceFingerprint struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Outputs carries the manifest's row-count summary. RowsTotal is the
// cumulative distinct-row count across every version published so far
// (the PK index cardinality at publish time), read by the consistency
// guard's tolerance check against the live index. RowsAddedThisVersion
// is just this version's delta size.
type Outputs struct {
	RowsTotal            int `json:"rows_total"`
	RowsAddedThisVersion int `json:"rows_added_this_version"`
}

// FingerprintToWire converts a domain SourceFingerprint to its manifest
// wire form.
func FingerprintToWire(f pipeline.SourceFingerprint) SourceFingerprint {
	return SourceFingerprint{SHA256: f.SHA256, Size: f.Size}
}

// BuildManifest assembles the per-version event manifest from a write
// result, ready for the publisher to serialize. rowsTotal is the
// cumulative distinct-row count (the updated PK index's cardinality);
// rowsAddedThisVersion is the size of this version's delta alone.
func BuildManifest(datasetID, versionTS string, primaryKeys []string, result Result, fingerprint pipeline.SourceFingerprint, rowsTotal, rowsAddedThisVersion int) Manifest {
	return Manifest{
		DatasetID:   datasetID,
		VersionTS:   versionTS,
		Partitions:  result.Partitions,
		PrimaryKeys: primaryKeys,
		Source:      FingerprintToWire(fingerprint),
		Outputs:     Outputs{RowsTotal: rowsTotal, RowsAddedThisVersion: rowsAddedThisVersion},
	}
}
