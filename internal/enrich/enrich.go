// Package enrich adds the run-scoped metadata columns (version,
// vintage_date) and the default quality_flag to every delta row before it
// is written as an event. Constant columns such as dataset_id, provider,
// frequency, unit and source_kind are not set here; they keep whatever
// values the parser and normalizer gave them.
package enrich

import (
	"time"

	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// Apply stamps version, vintage_date and a default quality_flag onto every
// row in rows. version is the current run's version_ts; vintage is the run
// start time. A row whose QualityFlag was already set by the normalizer
// (e.g. OUTLIER, IMPUTED) is left untouched — enrichment only fills the
// default.
func Apply(rows []pipeline.Row, versionTS string, vintage time.Time) []pipeline.Row {
	enriched := make([]pipeline.Row, len(rows))

	for i, row := range rows {
		row.Version = versionTS
		row.VintageDate = vintage

		if row.QualityFlag == "" {
			row.QualityFlag = pipeline.QualityOK
		}

		enriched[i] = row
	}

	return enriched
}
