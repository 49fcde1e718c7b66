// Package driver orchestrates one end-to-end pipeline invocation by wiring
// together the leaf components: lock, consistency guard, fetch, parse,
// normalize, delta, enrich, event writer, publisher, and projection
// consolidator.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/datapipe-io/pipeline/internal/consistency"
	"github.com/datapipe-io/pipeline/internal/delta"
	"github.com/datapipe-io/pipeline/internal/enrich"
	"github.com/datapipe-io/pipeline/internal/events"
	"github.com/datapipe-io/pipeline/internal/lock"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/paths"
	"github.com/datapipe-io/pipeline/internal/pipeline"
	"github.com/datapipe-io/pipeline/internal/projection"
	"github.com/datapipe-io/pipeline/internal/publish"
)

// ErrParserNotRegistered and ErrNormalizerNotRegistered are fatal
// validation failures: a Config naming an unregistered parser/normalizer
// cannot produce a frame at all, so no writes are attempted.
var (
	ErrParserNotRegistered     = errors.New("driver: parser not registered")
	ErrNormalizerNotRegistered = errors.New("driver: normalizer not registered")
)

// Deps bundles the driver's external collaborators and the storage/lock
// backends a single run operates against.
type Deps struct {
	Store       objectstore.Client
	Locker      lock.Locker
	Fetcher     pipeline.Fetcher
	Parsers     pipeline.ParserRegistry
	Normalizers pipeline.NormalizerRegistry
	Notifier    pipeline.Notifier

	// Now is the driver's time source, overridable in tests. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}

	return time.Now()
}

// Result is the driver's structured outcome for one invocation.
type Result struct {
	RunID     string
	VersionTS string
	Status    pipeline.Status
	RowsAdded int
}

// Run orchestrates one pipeline invocation: acquire lock (skip-if-held),
// consistency guard, fetch, change-check, parse, date filter, normalize,
// delta, enrich, write-events, publish, consolidate (if published), notify
// (if published), and a guaranteed release of the lock regardless of
// outcome.
func Run(ctx context.Context, cfg pipeline.Config, deps Deps) (Result, error) {
	runID := uuid.NewString()

	if err := cfg.Validate(); err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, err
	}

	if cfg.LockingEnabled() {
		token, err := deps.Locker.Acquire(ctx, paths.LockKey(cfg.DatasetID), pipeline.DefaultLockTTL)
		if errors.Is(err, lock.ErrHeld) {
			return Result{RunID: runID, Status: pipeline.StatusSkippedLock}, nil
		}

		if err != nil {
			return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("acquire lock: %w", err)
		}

		defer func() {
			_ = deps.Locker.Release(context.Background(), paths.LockKey(cfg.DatasetID), token)
		}()
	}

	return runLocked(ctx, runID, cfg, deps)
}

func runLocked(ctx context.Context, runID string, cfg pipeline.Config, deps Deps) (Result, error) {
	tolerance := cfg.Tolerance()

	status, err := consistency.Verify(ctx, deps.Store, cfg.DatasetID, tolerance)
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("consistency verify: %w", err)
	}

	if status == consistency.StatusInconsistent {
		if err := consistency.RebuildFromPointer(ctx, deps.Store, cfg.DatasetID); err != nil {
			return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("rebuild from pointer: %w", err)
		}
	}

	raw, fingerprint, err := deps.Fetcher.Fetch(ctx, cfg)
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("fetch: %w", err)
	}

	pointer, err := publish.ReadPointer(ctx, deps.Store, cfg.DatasetID)
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("read pointer: %w", err)
	}

	if !cfg.FullReload && pointer != nil {
		unchanged, err := fingerprintUnchanged(ctx, deps.Store, cfg.DatasetID, pointer.CurrentVersion, fingerprint)
		if err != nil {
			return Result{RunID: runID, Status: pipeline.StatusError}, err
		}

		if unchanged {
			return Result{RunID: runID, Status: pipeline.StatusNoChange}, nil
		}
	}

	parser, ok := deps.Parsers.Resolve(cfg.ParserName)
	if !ok {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("%w: %s", ErrParserNotRegistered, cfg.ParserName)
	}

	frame, err := parser.Parse(ctx, raw, cfg)
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("parse: %w", err)
	}

	frame, err = filterByLag(frame, cfg, deps.now())
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, err
	}

	if cfg.NormalizerName != "" {
		normalizer, ok := deps.Normalizers.Resolve(cfg.NormalizerName)
		if !ok {
			return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("%w: %s", ErrNormalizerNotRegistered, cfg.NormalizerName)
		}

		frame, err = normalizer.Normalize(ctx, frame, cfg)
		if err != nil {
			return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("normalize: %w", err)
		}
	}

	priorIndex, err := publish.ReadPKIndex(ctx, deps.Store, cfg.DatasetID)
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("read pk index: %w", err)
	}

	deltaResult := delta.Compute(frame, priorIndex, cfg.PrimaryKeys)

	if len(deltaResult.Delta) == 0 && !cfg.PublishEmptyDelta {
		return Result{RunID: runID, Status: pipeline.StatusNoNewData}, nil
	}

	now := deps.now()
	versionTS := paths.VersionTimestamp(now)

	enriched := enrich.Apply(deltaResult.Delta, versionTS, now)

	eventResult, err := events.WriteEvents(ctx, deps.Store, cfg.DatasetID, versionTS, enriched)
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("write events: %w", err)
	}

	publishResult, err := publish.Publish(ctx, deps.Store, publish.Input{
		DatasetID:    cfg.DatasetID,
		VersionTS:    versionTS,
		Fingerprint:  fingerprint,
		PrimaryKeys:  cfg.PrimaryKeys,
		EventResult:  eventResult,
		RowsAdded:    len(enriched),
		UpdatedIndex: deltaResult.UpdatedIndex,
	})
	if err != nil {
		return Result{RunID: runID, Status: pipeline.StatusError}, fmt.Errorf("publish: %w", err)
	}

	if !publishResult.Published {
		return Result{RunID: runID, VersionTS: versionTS, Status: pipeline.StatusCASConflict}, nil
	}

	for _, month := range eventResult.AffectedMonths {
		if err := projection.Consolidate(ctx, deps.Store, cfg.DatasetID, month.Year, month.Month, cfg.PrimaryKeys, true); err != nil {
			return Result{RunID: runID, VersionTS: versionTS, Status: pipeline.StatusError}, fmt.Errorf("consolidate %d-%02d: %w", month.Year, month.Month, err)
		}
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = pipeline.NoopNotifier{}
	}

	payload := pipeline.NotificationPayload{
		Type:            pipeline.NotificationTypeDatasetUpdated,
		Timestamp:       now,
		DatasetID:       cfg.DatasetID,
		ManifestPointer: paths.PointerKey(cfg.DatasetID),
	}

	if err := notifier.Notify(ctx, payload); err != nil {
		return Result{RunID: runID, VersionTS: versionTS, Status: pipeline.StatusError}, fmt.Errorf("notify: %w", err)
	}

	return Result{RunID: runID, VersionTS: versionTS, Status: pipeline.StatusCompleted, RowsAdded: len(enriched)}, nil
}

// fingerprintUnchanged implements the driver's change-check: the source
// fingerprint is compared against the one recorded in the current
// version's event manifest, not re-derived from anything cached locally,
// so a run started from a cold cache still detects "no_change" correctly.
func fingerprintUnchanged(ctx context.Context, store objectstore.Client, datasetID, currentVersion string, fingerprint pipeline.SourceFingerprint) (bool, error) {
	manifest, err := publish.ReadEventManifest(ctx, store, datasetID, currentVersion)
	if err != nil {
		return false, fmt.Errorf("read current manifest: %w", err)
	}

	return manifest.Source.SHA256 == fingerprint.SHA256 && manifest.Source.Size == fingerprint.Size, nil
}

// filterByLag drops rows whose obs_date falls within the dataset's
// publication lag window, i.e. observations a source has not yet
// finalized.
func filterByLag(frame pipeline.Frame, cfg pipeline.Config, now time.Time) (pipeline.Frame, error) {
	if cfg.LagDays <= 0 {
		return frame, nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("filter by lag: %w", err)
	}

	cutoff := now.In(loc).AddDate(0, 0, -cfg.LagDays)

	kept := make([]pipeline.Row, 0, len(frame.Rows))

	for _, row := range frame.Rows {
		obsDate := row.ObsDate
		if obsDate.IsZero() {
			obsDate = row.ObsTime
		}

		if obsDate.After(cutoff) {
			continue
		}

		kept = append(kept, row)
	}

	return pipeline.Frame{Rows: kept}, nil
}
