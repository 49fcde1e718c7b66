// Package publish implements the CAS publisher: it writes
// the event manifest, compare-and-swaps the dataset pointer against its
// object ETag, and only then writes the primary-key index — the step
// ordering that carries the system's core correctness argument.
package publish

// PointerDoc is the wire form of `current/manifest.json`.
type PointerDoc struct {
	DatasetID      string `json:"dataset_id"`
	CurrentVersion string `json:"current_version"`
}
