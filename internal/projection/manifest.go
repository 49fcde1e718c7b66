// Package projection implements the monthly consolidator: a write-ahead-log
// staged, idempotent rebuild of per-month read models from events, guarded
// by per-month status manifests.
package projection

// Status is a per-month consolidation state.
type Status string

// Known states.
const (
	StatusMissing    Status = "missing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ManifestDoc is the wire form of `projections/consolidation/Y/M/manifest.json`.
type ManifestDoc struct {
	DatasetID string `json:"dataset_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
}
