// Package consistency implements the self-healing check between the
// dataset pointer and the primary-key index, the only
// mechanism that recovers from the specific failure window where a
// pointer CAS succeeded but the subsequent index write did not.
package consistency

import (
	"context"
	"fmt"

	"github.com/datapipe-io/pipeline/internal/delta"
	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/publish"
)

// Status is the verdict Verify returns.
type Status string

// Known verdicts.
const (
	StatusConsistent   Status = "consistent"
	StatusInconsistent Status = "inconsistent"
)

// DefaultTolerance is the absolute row-count slack Verify allows between
// the PK index cardinality and the current version's manifest row total,
// accounting for dedup differences.
const DefaultTolerance = 10

// Verify checks whether the PK index agrees with the current version's
// manifest: if no pointer exists, consistent iff the index is empty or
// absent; otherwise consistent iff the index cardinality is within
// tolerance of the current version's manifest rows_total.
func Verify(ctx context.Context, store objectstore.Client, datasetID string, tolerance int) (Status, error) {
	pointer, err := publish.ReadPointer(ctx, store, datasetID)
	if err != nil {
		return "", fmt.Errorf("verify %s: %w", datasetID, err)
	}

	index, err := publish.ReadPKIndex(ctx, store, datasetID)
	if err != nil {
		return "", fmt.Errorf("verify %s: %w", datasetID, err)
	}

	if pointer == nil {
		if len(index) == 0 {
			return StatusConsistent, nil
		}

		return StatusInconsistent, nil
	}

	manifest, err := publish.ReadEventManifest(ctx, store, datasetID, pointer.CurrentVersion)
	if err != nil {
		return "", fmt.Errorf("verify %s: %w", datasetID, err)
	}

	diff := len(index) - manifest.Outputs.RowsTotal
	if diff < 0 {
		diff = -diff
	}

	if diff <= tolerance {
		return StatusConsistent, nil
	}

	return StatusInconsistent, nil
}

// RebuildFromPointer reads the pointer's current_version and its
// manifest's primary_keys, lists every event partition for every version
// up to and including current_version, recomputes key_hash over those
// primary keys, unions and deduplicates, and overwrites the PK index.
// This is the only self-healing
// mechanism and is safe to run even when the index is merely stale rather
// than missing, since it always derives the index from events, the
// append-only source of truth.
func RebuildFromPointer(ctx context.Context, store objectstore.Client, datasetID string) error {
	pointer, err := publish.ReadPointer(ctx, store, datasetID)
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", datasetID, err)
	}

	if pointer == nil {
		return WritePKIndex(ctx, store, datasetID, nil)
	}

	manifest, err := publish.ReadEventManifest(ctx, store, datasetID, pointer.CurrentVersion)
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", datasetID, err)
	}

	versions, err := events.ListAllVersions(ctx, store, datasetID)
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", datasetID, err)
	}

	seen := make(map[string]struct{})

	var hashes []string

	for _, version := range versions {
		if version > pointer.CurrentVersion {
			continue
		}

		partitions, err := events.ListVersionPartitions(ctx, store, datasetID, version)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", datasetID, err)
		}

		for _, key := range partitions {
			rows, err := events.ReadPartition(ctx, store, key)
			if err != nil {
				return fmt.Errorf("rebuild %s: %w", datasetID, err)
			}

			for _, row := range rows {
				hash := delta.KeyHash(row, manifest.PrimaryKeys)
				if _, ok := seen[hash]; ok {
					continue
				}

				seen[hash] = struct{}{}
				hashes = append(hashes, hash)
			}
		}
	}

	return WritePKIndex(ctx, store, datasetID, hashes)
}

// WritePKIndex is re-exported from internal/publish so callers in this
// package need only import internal/consistency for the full rebuild
// surface.
func WritePKIndex(ctx context.Context, store objectstore.Client, datasetID string, hashes []string) error {
	return publish.WritePKIndex(ctx, store, datasetID, hashes)
}
