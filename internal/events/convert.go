package events

import (
	"encoding/json"
	"time"

	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// EncodeFields serializes a row's Fields map for the Parquet wire schema.
func EncodeFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}

	body, err := json.Marshal(fields)
	if err != nil {
		// Fields values are always plain strings produced by a Normalizer;
		// a marshal failure here would indicate a bug upstream, not bad
		// input, so it is swallowed into an empty object rather than
		// propagated through a signature that otherwise never fails.
		return "{}"
	}

	return string(body)
}

// DecodeFields deserializes a row's Fields map from its Parquet wire form.
func DecodeFields(raw string) map[string]string {
	if raw == "" {
		return nil
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil
	}

	return fields
}

// FromParquetRow converts a Parquet wire row back to a domain Row.
func FromParquetRow(pr *ParquetRow) pipeline.Row {
	obsDate, _ := time.Parse(obsDateLayout, pr.ObsDate)

	return pipeline.Row{
		DatasetID:          pr.DatasetID,
		Provider:           pr.Provider,
		Frequency:          pr.Frequency,
		Unit:               pr.Unit,
		SourceKind:         pipeline.SourceKind(pr.SourceKind),
		ObsTime:            time.UnixMicro(pr.ObsTime).UTC(),
		ObsDate:            obsDate,
		Value:              pr.Value,
		InternalSeriesCode: pr.InternalSeriesCode,
		Version:            pr.Version,
		VintageDate:        time.UnixMicro(pr.VintageDate).UTC(),
		QualityFlag:        pipeline.QualityFlag(pr.QualityFlag),
		Fields:             DecodeFields(pr.Fields),
	}
}
