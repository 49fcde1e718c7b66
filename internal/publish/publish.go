package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// Result is the outcome of a Publish call.
type Result struct {
	Published bool
	Reason    string
}

// ReasonCASConflict is the Result.Reason set when the pointer CAS lost a
// race to a concurrent publisher.
const ReasonCASConflict = "cas_conflict"

// Input bundles everything Publish needs; kept as a struct rather than a
// long positional parameter list since several fields are themselves
// structured.
type Input struct {
	DatasetID   string
	VersionTS   string
	Fingerprint pipeline.SourceFingerprint
	PrimaryKeys []string
	EventResult events.Result
	RowsAdded   int
	UpdatedIndex []string
}

// Publish writes the event manifest (safe unconditionally, invisible
// until the pointer references it), CASes the pointer, and only on CAS
// success writes the PK index.
func Publish(ctx context.Context, store objectstore.Client, in Input) (Result, error) {
	manifest := events.BuildManifest(in.DatasetID, in.VersionTS, in.PrimaryKeys, in.EventResult, in.Fingerprint, len(in.UpdatedIndex), in.RowsAdded)

	manifestKey := paths.EventManifestKey(in.DatasetID, in.VersionTS)

	manifestBody, err := objectstore.EncodeJSON(manifest)
	if err != nil {
		return Result{}, fmt.Errorf("encode event manifest %s: %w", manifestKey, err)
	}

	if _, err := store.Put(ctx, manifestKey, manifestBody, objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return Result{}, fmt.Errorf("write event manifest %s: %w", manifestKey, err)
	}

	pointerKey := paths.PointerKey(in.DatasetID)

	existingEtag, exists, err := readPointerETag(ctx, store, pointerKey)
	if err != nil {
		return Result{}, err
	}

	pointerBody, err := objectstore.EncodeJSON(PointerDoc{DatasetID: in.DatasetID, CurrentVersion: in.VersionTS})
	if err != nil {
		return Result{}, fmt.Errorf("encode pointer %s: %w", pointerKey, err)
	}

	putOpts := objectstore.PutOptions{ContentType: "application/json"}
	if exists {
		putOpts.IfMatch = existingEtag
	} else {
		putOpts.IfAbsent = true
	}

	if _, err := store.Put(ctx, pointerKey, pointerBody, putOpts); err != nil {
		var precond *objectstore.PreconditionFailedError
		if errors.As(err, &precond) {
			return Result{Published: false, Reason: ReasonCASConflict}, nil
		}

		return Result{}, fmt.Errorf("cas pointer %s: %w", pointerKey, err)
	}

	if err := WritePKIndex(ctx, store, in.DatasetID, in.UpdatedIndex); err != nil {
		return Result{}, err
	}

	return Result{Published: true}, nil
}

func readPointerETag(ctx context.Context, store objectstore.Client, key string) (etag string, exists bool, err error) {
	etag, err = store.Head(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("head pointer %s: %w", key, err)
	}

	return etag, true, nil
}

// ReadPointer reads the current pointer, returning (nil, nil) if absent.
func ReadPointer(ctx context.Context, store objectstore.Client, datasetID string) (*PointerDoc, error) {
	key := paths.PointerKey(datasetID)

	obj, err := store.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read pointer %s: %w", key, err)
	}

	var doc PointerDoc
	if err := objectstore.DecodeJSON(obj.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode pointer %s: %w", key, err)
	}

	return &doc, nil
}

// ReadEventManifest reads a version's event manifest.
func ReadEventManifest(ctx context.Context, store objectstore.Client, datasetID, versionTS string) (events.Manifest, error) {
	key := paths.EventManifestKey(datasetID, versionTS)

	obj, err := store.Get(ctx, key)
	if err != nil {
		return events.Manifest{}, fmt.Errorf("read event manifest %s: %w", key, err)
	}

	var manifest events.Manifest
	if err := objectstore.DecodeJSON(obj.Body, &manifest); err != nil {
		return events.Manifest{}, fmt.Errorf("decode event manifest %s: %w", key, err)
	}

	return manifest, nil
}
