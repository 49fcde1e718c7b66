// Package delta computes the set of rows a dataset has never published
// before: primary-key hashing and the anti-join against the current index.
//
// Pure utility functions over primitives, deterministic and
// collision-resistant, no I/O.
package delta

import (
	"crypto/sha1" //nolint:gosec // key_hash is a join key, not a security boundary
	"encoding/hex"
	"strings"

	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// KeyHash computes a row's primary-key hash: SHA1(join("|", values)),
// where values are the row's Fields taken in primaryKeys order. Stable
// across runs — any change to a primary-key column's value or string
// representation changes the hash. SHA1 is used rather than SHA256 since
// key_hash is a join key, not a security boundary, and the shorter digest
// keeps the PK index smaller.
func KeyHash(row pipeline.Row, primaryKeys []string) string {
	parts := make([]string, len(primaryKeys))

	for i, pk := range primaryKeys {
		parts[i] = row.Fields[pk]
	}

	return hashSHA1(strings.Join(parts, "|"))
}

func hashSHA1(input string) string {
	sum := sha1.Sum([]byte(input)) //nolint:gosec // join key, not a security boundary

	return hex.EncodeToString(sum[:])
}
