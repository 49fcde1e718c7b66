package delta

import "github.com/datapipe-io/pipeline/internal/pipeline"

type (
	// Result is the output of Compute: the rows never seen before, the
	// index updated to include them, and a snapshot of the index as it
	// stood before this computation (used by callers that need to detect
	// a no-op rebuild).
	Result struct {
		Delta        []pipeline.Row
		UpdatedIndex []string
		PriorIndex   []string
	}
)

// Compute stamps KeyHash on every row of frame, anti-joins against index
// to find rows never published before, and returns an updated index
// deduplicated by first occurrence. Pure; no I/O.
func Compute(frame pipeline.Frame, index []string, primaryKeys []string) Result {
	seen := make(map[string]struct{}, len(index))

	priorIndex := make([]string, len(index))
	copy(priorIndex, index)

	for _, h := range index {
		seen[h] = struct{}{}
	}

	delta := make([]pipeline.Row, 0, len(frame.Rows))
	updatedIndex := make([]string, len(index), len(index)+len(frame.Rows))
	copy(updatedIndex, index)

	for _, row := range frame.Rows {
		row.KeyHash = KeyHash(row, primaryKeys)

		if _, ok := seen[row.KeyHash]; ok {
			continue // existing primary-key hash: silently dropped
		}

		seen[row.KeyHash] = struct{}{}
		delta = append(delta, row)
		updatedIndex = append(updatedIndex, row.KeyHash)
	}

	return Result{
		Delta:        delta,
		UpdatedIndex: updatedIndex,
		PriorIndex:   priorIndex,
	}
}
