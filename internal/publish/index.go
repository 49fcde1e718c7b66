package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
)

// keyHashRow is the on-disk schema for `index/keys.parquet`: exactly one
// column, key_hash, deduplicated.
type keyHashRow struct {
	KeyHash string `parquet:"name=key_hash, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
}

// ReadPKIndex reads the dataset's primary-key index, returning an empty
// slice (not an error) when it has never been written.
func ReadPKIndex(ctx context.Context, store objectstore.Client, datasetID string) ([]string, error) {
	key := paths.PKIndexKey(datasetID)

	obj, err := store.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read pk index %s: %w", key, err)
	}

	rows, err := objectstore.DecodeParquet[keyHashRow](obj.Body)
	if err != nil {
		return nil, fmt.Errorf("decode pk index %s: %w", key, err)
	}

	hashes := make([]string, 0, len(rows))
	for _, r := range rows {
		hashes = append(hashes, r.KeyHash)
	}

	return hashes, nil
}

// WritePKIndex overwrites `index/keys.parquet` with hashes.
func WritePKIndex(ctx context.Context, store objectstore.Client, datasetID string, hashes []string) error {
	key := paths.PKIndexKey(datasetID)

	rows := make([]*keyHashRow, 0, len(hashes))
	for _, h := range hashes {
		rows = append(rows, &keyHashRow{KeyHash: h})
	}

	body, err := objectstore.EncodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encode pk index %s: %w", key, err)
	}

	if _, err := store.Put(ctx, key, body, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("write pk index %s: %w", key, err)
	}

	return nil
}
