// Package events implements the immutable, versioned event store: the
// partitioned Parquet writer with rollback and the
// append-only per-month event index it maintains alongside it.
package events

import "github.com/datapipe-io/pipeline/internal/pipeline"

const obsDateLayout = "2006-01-02"

// ParquetRow is the on-disk schema for one event partition file, also
// reused by internal/projection for consolidated per-month files since
// both represent the same Row shape. Field tags follow xitongsys/parquet-go's
// struct-tag convention; key_hash is deliberately absent.
type ParquetRow struct {
	DatasetID          string  `parquet:"name=dataset_id, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	Provider           string  `parquet:"name=provider, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	Frequency          string  `parquet:"name=frequency, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	Unit               string  `parquet:"name=unit, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	SourceKind         string  `parquet:"name=source_kind, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	ObsTime            int64   `parquet:"name=obs_time, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	ObsDate            string  `parquet:"name=obs_date, type=BYTE_ARRAY"`
	Value              float64 `parquet:"name=value, type=DOUBLE"`
	InternalSeriesCode string  `parquet:"name=internal_series_code, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	Version            string  `parquet:"name=version, type=BYTE_ARRAY"`
	VintageDate        int64   `parquet:"name=vintage_date, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	QualityFlag        string  `parquet:"name=quality_flag, type=BYTE_ARRAY, encoding=PLAIN_DICTIONARY"`
	Fields             string  `parquet:"name=fields, type=BYTE_ARRAY"` // JSON-encoded map[string]string
}

// ToParquetRow converts a domain Row to its Parquet wire form.
func ToParquetRow(r pipeline.Row) *ParquetRow {
	return &ParquetRow{
		DatasetID:          r.DatasetID,
		Provider:           r.Provider,
		Frequency:          r.Frequency,
		Unit:               r.Unit,
		SourceKind:         string(r.SourceKind),
		ObsTime:            r.ObsTime.UnixMicro(),
		ObsDate:            r.ObsDate.Format(obsDateLayout),
		Value:              r.Value,
		InternalSeriesCode: r.InternalSeriesCode,
		Version:            r.Version,
		VintageDate:        r.VintageDate.UnixMicro(),
		QualityFlag:        string(r.QualityFlag),
		Fields:             EncodeFields(r.Fields),
	}
}
