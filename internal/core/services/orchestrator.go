package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/normalize"
	"github.com/ewilliams-labs/cratedigger/internal/retry"
)

// InterruptedMessage is recorded on jobs stopped by shutdown.
const InterruptedMessage = "interrupted"

// Pipeline bundles the per-track analysis stages.
type Pipeline struct {
	Resolver  ports.SourceResolver
	Acquirer  ports.AudioAcquirer
	Extractor ports.FeatureExtractor
}

// Stores bundles persistence.
type Stores struct {
	Catalog ports.CatalogStore
	Jobs    ports.JobStore
	Results ports.ResultStore
	Library ports.LibraryStats
}

// OrchestratorConfig tunes pacing and persistence retries.
type OrchestratorConfig struct {
	// TrackDelay is slept between tracks to respect upstream rate limits.
	TrackDelay time.Duration
	// Persist governs every state-mutating store call.
	Persist retry.Policy
}

// DefaultOrchestratorConfig waits one second between tracks and retries
// writes three times from 500ms up to 5s.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TrackDelay: time.Second,
		Persist:    retry.Policy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
}

// Orchestrator runs analysis jobs: each track is resolved, acquired,
// measured, normalized and persisted in order.
type Orchestrator struct {
	pipeline Pipeline
	stores   Stores
	notifier ports.ProgressNotifier
	cfg      OrchestratorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator constructs an Orchestrator. notifier may be nil.
func NewOrchestrator(p Pipeline, s Stores, notifier ports.ProgressNotifier, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "orchestrator")
	cfg.Persist.Logger = logger
	return &Orchestrator{
		pipeline: p,
		stores:   s,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// trackFailure is a per-track error; anything else escaping the loop is
// systemic.
type trackFailure struct {
	stage string
	err   error
}

func (f *trackFailure) Error() string { return f.stage + ": " + f.err.Error() }
func (f *trackFailure) Unwrap() error { return f.err }

// Run executes one job. Per-track failures are recorded on the job and never
// abort it; a systemic failure marks the job failed and is returned.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (err error) {
	log := o.logger.With("job_id", jobID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestrator: panic: %v", r)
			o.fail(context.WithoutCancel(ctx), log, jobID, err.Error())
		}
	}()

	job, err := o.stores.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("orchestrator: load job: %w", err)
	}
	if job.Status.Terminal() {
		log.Warn("job already finished, skipping", "status", job.Status)
		return nil
	}

	if err := o.persist(ctx, "mark in progress", func(ctx context.Context) error {
		return o.stores.Jobs.MarkInProgress(ctx, jobID, len(job.TrackIDs))
	}); err != nil {
		o.fail(context.WithoutCancel(ctx), log, jobID, err.Error())
		return err
	}
	o.notify(ctx, jobID)
	log.Info("analysis started", "tracks", len(job.TrackIDs), "owner", job.Owner)

	median, hasMedian := o.libraryMedian(ctx, log)

	for i, trackID := range job.TrackIDs {
		if ctx.Err() != nil {
			o.fail(context.WithoutCancel(ctx), log, jobID, InterruptedMessage)
			return fmt.Errorf("orchestrator: %s: %w", InterruptedMessage, ctx.Err())
		}

		tlog := log.With("track_id", trackID, "position", i+1)
		result, err := o.analyzeTrack(ctx, tlog, trackID, median, hasMedian)
		if err != nil {
			var tf *trackFailure
			if !errors.As(err, &tf) {
				o.fail(context.WithoutCancel(ctx), log, jobID, err.Error())
				return err
			}
			tlog.Warn("track failed", "stage", tf.stage, "error", tf.err)
			o.recordFailure(ctx, tlog, jobID, trackID, tf)
		} else {
			tlog.Info("track analyzed", "bpm", result.BPM, "key", result.Key.String(), "energy", result.Energy)
			o.persistOrAbandon(ctx, tlog, "increment processed", func(ctx context.Context) error {
				return o.stores.Jobs.IncrementProcessed(ctx, jobID)
			})
		}
		o.notify(ctx, jobID)

		if i < len(job.TrackIDs)-1 {
			_ = retry.Sleep(ctx, o.cfg.TrackDelay)
		}
	}

	if err := o.persist(ctx, "mark completed", func(ctx context.Context) error {
		return o.stores.Jobs.MarkCompleted(ctx, jobID)
	}); err != nil {
		log.Error("could not mark job completed", "error", err)
		return err
	}
	o.notify(ctx, jobID)
	log.Info("analysis completed")
	return nil
}

// analyzeTrack runs the pipeline for one track. Every error it returns is a
// *trackFailure.
func (o *Orchestrator) analyzeTrack(ctx context.Context, log *slog.Logger, trackID string, median float64, hasMedian bool) (domain.NormalizedResult, error) {
	track, err := o.stores.Catalog.GetTrack(ctx, trackID)
	if err != nil {
		return domain.NormalizedResult{}, &trackFailure{stage: "catalog", err: err}
	}

	src, err := o.pipeline.Resolver.Resolve(ctx, track.Metadata())
	if err != nil {
		if !ports.IsNoSource(err) {
			err = fmt.Errorf("resolution failed: %w", err)
		}
		return domain.NormalizedResult{}, &trackFailure{stage: "resolve", err: err}
	}
	log.Debug("source resolved", "source_id", src.SourceID, "confidence", src.Confidence)

	sample, err := o.pipeline.Acquirer.Acquire(ctx, src)
	if err != nil {
		return domain.NormalizedResult{}, &trackFailure{stage: "acquire", err: err}
	}

	features := o.pipeline.Extractor.Extract(sample)

	bpm := normalize.NormalizeBPM(normalize.BPMInput{
		RawBPM:           features.BPM,
		Confidence:       features.BPMConfidence,
		Candidates:       features.BPMCandidates,
		LibraryMedian:    median,
		HasLibraryMedian: hasMedian,
		Genre: normalize.GenreText{
			TrackTitle:   track.Title,
			ReleaseTitle: track.ReleaseTitle,
			Hints:        track.GenreHints,
		},
	})
	if bpm.WasAdjusted {
		log.Info("bpm adjusted", "raw", features.BPM, "bpm", bpm.BPM, "reason", bpm.Reason, "genre", bpm.Genre)
	}

	reference, err := o.stores.Library.RawEnergies(ctx, trackID)
	if err != nil {
		log.Warn("library energies unavailable, using raw energy", "error", err)
		reference = nil
	}
	_, energy := normalize.Energy(features.RawEnergy, reference)

	result := domain.NormalizedResult{
		TrackID:       trackID,
		BPM:           bpm.BPM,
		RawBPM:        features.BPM,
		BPMAdjusted:   bpm.WasAdjusted,
		BPMReason:     bpm.Reason,
		Key:           features.Key,
		KeyConfidence: features.KeyConfidence,
		Energy:        energy,
		RawEnergy:     features.RawEnergy,
		Confidence:    features.BPMConfidence,
		SourceID:      src.SourceID,
		SourceTitle:   src.Title,
		AnalyzedAt:    o.now().UTC(),
	}

	if err := o.persist(ctx, "save result", func(ctx context.Context) error {
		return o.stores.Results.SaveResult(ctx, result)
	}); err != nil {
		return domain.NormalizedResult{}, &trackFailure{stage: "persist", err: err}
	}
	return result, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, log *slog.Logger, jobID, trackID string, tf *trackFailure) {
	o.persistOrAbandon(ctx, log, "increment failed", func(ctx context.Context) error {
		return o.stores.Jobs.IncrementFailed(ctx, jobID)
	})
	entry := domain.JobError{TrackID: trackID, Message: tf.err.Error(), Timestamp: o.now().UTC()}
	o.persistOrAbandon(ctx, log, "append error", func(ctx context.Context) error {
		return o.stores.Jobs.AppendError(ctx, jobID, entry)
	})
}

func (o *Orchestrator) libraryMedian(ctx context.Context, log *slog.Logger) (float64, bool) {
	bpms, err := o.stores.Library.AnalyzedBPMs(ctx)
	if err != nil {
		log.Warn("library median unavailable", "error", err)
		return 0, false
	}
	median, ok := normalize.Median(bpms)
	if ok {
		log.Debug("library median bpm", "median", median, "tracks", len(bpms))
	}
	return median, ok
}

func (o *Orchestrator) persist(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return retry.Exec(ctx, o.cfg.Persist.Named(name), op)
}

// persistOrAbandon retries a counter or log update; if it still fails the
// update is dropped and the job carries on.
func (o *Orchestrator) persistOrAbandon(ctx context.Context, log *slog.Logger, name string, op func(ctx context.Context) error) {
	if err := o.persist(ctx, name, op); err != nil {
		log.Error("update abandoned", "update", name, "error", err)
	}
}

// fail marks the job failed. It runs on a context detached from shutdown so
// the terminal state is still written.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, jobID, message string) {
	log.Error("analysis failed", "error", message)
	if err := o.persist(ctx, "mark failed", func(ctx context.Context) error {
		return o.stores.Jobs.MarkFailed(ctx, jobID, message)
	}); err != nil {
		log.Error("could not mark job failed", "error", err)
	}
	o.notify(ctx, jobID)
}

func (o *Orchestrator) notify(ctx context.Context, jobID string) {
	if o.notifier == nil {
		return
	}
	job, err := o.stores.Jobs.GetJob(context.WithoutCancel(ctx), jobID)
	if err != nil {
		o.logger.Debug("progress snapshot unavailable", "job_id", jobID, "error", err)
		return
	}
	o.notifier.JobUpdated(job)
}
