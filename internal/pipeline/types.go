// Package pipeline provides the domain models, capability interfaces and
// dataset config for the incremental dataset ingestion pipeline. The
// orchestrator lives in internal/driver.
//
// Apart from NotificationPayload, the message contract, the domain types
// carry no JSON tags. Object-store wire formats live next to the component
// that owns them (events, publish, projection) and map to these types at
// the boundary.
package pipeline

import "time"

type (
	// SourceKind identifies where a dataset's raw bytes came from.
	SourceKind string

	// QualityFlag marks a row's data-quality classification.
	QualityFlag string

	// Row is one normalized, post-enrichment observation.
	//
	// PrimaryKeys determines which fields feed KeyHash (internal/delta);
	// KeyHash itself is attached by the delta engine and is never part of
	// the event payload written to storage.
	Row struct {
		DatasetID          string
		Provider           string
		Frequency          string
		Unit               string
		SourceKind         SourceKind
		ObsTime            time.Time
		ObsDate            time.Time
		Value              float64
		InternalSeriesCode string
		Version            string
		VintageDate        time.Time
		QualityFlag        QualityFlag

		// Fields keyed by column name, used to compute KeyHash generically
		// over the dataset's configured primary_keys without requiring a
		// fixed set of business columns on Row itself.
		Fields map[string]string

		// KeyHash is populated on delta rows by internal/delta.Compute.
		// Never serialized: the event and projection Parquet schemas have
		// no key_hash column.
		KeyHash string
	}

	// Frame is the typed row set the core receives from the (external)
	// fetch/parse/filter/normalize stages, and the unit the delta engine
	// and event writer operate on.
	Frame struct {
		Rows []Row
	}

	// SourceFingerprint identifies the exact bytes of a fetched source file,
	// used by the driver's change-check step to short-circuit a run when
	// nothing changed.
	SourceFingerprint struct {
		SHA256 string
		Size   int64
	}

	// NotificationPayload is the message contract emitted on a successful
	// publish. Delivery is handled by a Notifier implementation; the core
	// only knows the shape of the message.
	NotificationPayload struct {
		Type            string    `json:"type"`
		Timestamp       time.Time `json:"timestamp"`
		DatasetID       string    `json:"dataset_id"`
		ManifestPointer string    `json:"manifest_pointer"`
	}

	// Status is the result code the driver emits for a single invocation.
	Status string
)

// Known source kinds.
const (
	SourceKindFile SourceKind = "FILE"
	SourceKindAPI  SourceKind = "API"
)

// Known quality flags.
const (
	QualityOK       QualityFlag = "OK"
	QualityOutlier  QualityFlag = "OUTLIER"
	QualityImputed  QualityFlag = "IMPUTED"
)

// Known invocation result codes.
const (
	StatusCompleted   Status = "completed"
	StatusNoChange    Status = "no_change"
	StatusNoNewData   Status = "no_new_data"
	StatusCASConflict Status = "cas_conflict"
	StatusSkippedLock Status = "skipped_lock"
	StatusError       Status = "error"
)

// NotificationTypeDatasetUpdated is the only notification type the core emits.
const NotificationTypeDatasetUpdated = "DATASET_UPDATED"
