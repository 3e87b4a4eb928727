// Package stagerun drives one pipeline stage over a batch of logical units:
// it skips units already completed, retries failed attempts within a bounded
// budget, checkpoints every outcome, and keeps one unit's failure from
// aborting the rest of the batch.
package stagerun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentumsubash/ytd/internal/logging"
	"github.com/momentumsubash/ytd/internal/progress"
	"github.com/momentumsubash/ytd/internal/retry"
	"github.com/momentumsubash/ytd/internal/services"
)

// Operation is the stage contract: one call performs the stage's work for a
// single stem and reports the metadata to record on success.
type Operation interface {
	Stage() progress.Stage
	Execute(ctx context.Context, stem string) (progress.Metadata, error)
}

// FingerprintAware is implemented by operations whose completion records are
// validated against current file content before a unit is skipped.
type FingerprintAware interface {
	Fingerprint(stem string) *progress.Fingerprint
}

// CleanupAware is implemented by operations that relocate or delete the
// source file after the primary operation succeeds. A cleanup failure leaves
// the unit successful; only the degraded condition is logged.
type CleanupAware interface {
	Cleanup(ctx context.Context, stem string) error
}

// ProgressLog is the slice of the progress store the runner depends on.
type ProgressLog interface {
	IsCompleted(stem string, stage progress.Stage, fp *progress.Fingerprint) bool
	RecordOutcome(stem string, stage progress.Stage, status progress.Status, meta progress.Metadata) error
}

// Options controls a stage run.
type Options struct {
	Logger    *slog.Logger
	Progress  ProgressLog
	Operation Operation
	// Stems lists the units to process, in order.
	Stems []string
	// MaxAttempts bounds retries per unit; RetryBackoff is the base delay
	// between attempts, doubling per attempt.
	MaxAttempts  int
	RetryBackoff time.Duration
	// ItemDelay is slept between consecutive unit operations, after failures
	// as well as successes. Skipped units invoke nothing and add no delay.
	ItemDelay time.Duration
	// OnOutcome, when set, observes every recorded outcome in order.
	OnOutcome func(stem string, status progress.Status)
	// Sleeper overrides delay sleeps (useful for tests).
	Sleeper func(time.Duration)
}

// Outcome is the terminal result for one unit.
type Outcome struct {
	Stem     string
	Status   progress.Status
	Attempts int
	Elapsed  time.Duration
	Metadata progress.Metadata
	Err      error
}

// Result aggregates the outcomes of one stage run.
type Result struct {
	Stage    progress.Stage
	Outcomes []Outcome
}

func (r Result) byStatus(status progress.Status) []string {
	var stems []string
	for _, o := range r.Outcomes {
		if o.Status == status {
			stems = append(stems, o.Stem)
		}
	}
	return stems
}

// Successful returns the stems that completed the stage in this run.
func (r Result) Successful() []string { return r.byStatus(progress.StatusCompleted) }

// Skipped returns the stems that were already completed and not re-run.
func (r Result) Skipped() []string { return r.byStatus(progress.StatusSkipped) }

// Failed returns the stems that exhausted their attempts.
func (r Result) Failed() []string { return r.byStatus(progress.StatusFailed) }

// Counts tallies outcomes by status.
func (r Result) Counts() map[progress.Status]int {
	counts := make(map[progress.Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Done returns the stems that need no further work this run: completed plus
// skipped, in outcome order.
func (r Result) Done() []string {
	var stems []string
	for _, o := range r.Outcomes {
		if o.Status == progress.StatusCompleted || o.Status == progress.StatusSkipped {
			stems = append(stems, o.Stem)
		}
	}
	return stems
}

// Run executes the stage over the batch. The returned error is nil unless the
// run was interrupted or an outcome could not be persisted; per-unit failures
// are reported through the Result, not the error.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Operation == nil {
		return Result{}, errors.New("stage operation is required")
	}
	if opts.Progress == nil {
		return Result{}, errors.New("progress store is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stage := opts.Operation.Stage()
	stageCtx := services.WithStage(ctx, string(stage))
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("unit_count", len(opts.Stems)))

	result := Result{Stage: stage}
	for i, stem := range opts.Stems {
		if err := stageCtx.Err(); err != nil {
			stageLogger.Info("stage interrupted",
				logging.String(logging.FieldEventType, "stage_interrupted"),
				logging.Int("remaining", len(opts.Stems)-i))
			return result, err
		}

		unitCtx := services.WithStem(stageCtx, stem)
		unitLogger := logging.WithContext(unitCtx, opts.Logger)

		var fp *progress.Fingerprint
		if aware, ok := opts.Operation.(FingerprintAware); ok {
			fp = aware.Fingerprint(stem)
		}
		if opts.Progress.IsCompleted(stem, stage, fp) {
			unitLogger.Debug("unit already completed, skipping")
			result.Outcomes = append(result.Outcomes, Outcome{Stem: stem, Status: progress.StatusSkipped})
			notifyOutcome(opts, stem, progress.StatusSkipped)
			continue
		}

		var meta progress.Metadata
		unitStart := time.Now()
		attempts, opErr := retry.Do(unitCtx, retry.Policy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.RetryBackoff,
			Classify:    services.Retryable,
			Sleeper:     opts.Sleeper,
		}, func(attemptCtx context.Context) error {
			var err error
			meta, err = opts.Operation.Execute(attemptCtx, stem)
			return err
		})
		elapsed := time.Since(unitStart)

		if opErr != nil && stageCtx.Err() != nil {
			// Interrupted mid-unit: the in-flight outcome is deliberately not
			// recorded and will be re-attempted on the next run.
			stageLogger.Info("stage interrupted",
				logging.String(logging.FieldEventType, "stage_interrupted"),
				logging.Int("remaining", len(opts.Stems)-i))
			return result, stageCtx.Err()
		}

		if id, ok := services.PlaylistFromContext(unitCtx); ok && meta.Playlist == "" {
			meta.Playlist = id
		}

		if opErr == nil {
			if err := opts.Progress.RecordOutcome(stem, stage, progress.StatusCompleted, meta); err != nil {
				return result, fmt.Errorf("persist stage outcome: %w", err)
			}
			result.Outcomes = append(result.Outcomes, Outcome{
				Stem:     stem,
				Status:   progress.StatusCompleted,
				Attempts: attempts,
				Elapsed:  elapsed,
				Metadata: meta,
			})
			unitLogger.Info("unit completed",
				logging.String(logging.FieldEventType, "stage_unit_complete"),
				logging.Int("attempts", attempts))
			notifyOutcome(opts, stem, progress.StatusCompleted)

			if aware, ok := opts.Operation.(CleanupAware); ok {
				if err := aware.Cleanup(unitCtx, stem); err != nil {
					logging.WarnWithContext(unitLogger, "source cleanup failed after successful operation", "stage_cleanup_degraded",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "relocate or remove the source file manually"),
						logging.String(logging.FieldImpact, "unit remains successful; leftover source file on disk"))
				}
			}
		} else {
			failMeta := progress.Metadata{Playlist: meta.Playlist, Detail: opErr.Error()}
			if err := opts.Progress.RecordOutcome(stem, stage, progress.StatusFailed, failMeta); err != nil {
				return result, fmt.Errorf("persist stage outcome: %w", err)
			}
			result.Outcomes = append(result.Outcomes, Outcome{
				Stem:     stem,
				Status:   progress.StatusFailed,
				Attempts: attempts,
				Elapsed:  elapsed,
				Metadata: failMeta,
				Err:      opErr,
			})
			unitLogger.Error("unit failed",
				logging.String(logging.FieldEventType, "stage_unit_failure"),
				logging.Int("attempts", attempts),
				logging.Error(opErr))
			notifyOutcome(opts, stem, progress.StatusFailed)
		}

		if i < len(opts.Stems)-1 {
			if err := sleep(stageCtx, opts.ItemDelay, opts.Sleeper); err != nil {
				return result, err
			}
		}
	}

	counts := result.Counts()
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("successful", counts[progress.StatusCompleted]),
		logging.Int("skipped", counts[progress.StatusSkipped]),
		logging.Int("failed", counts[progress.StatusFailed]))

	return result, nil
}

func notifyOutcome(opts Options, stem string, status progress.Status) {
	if opts.OnOutcome != nil {
		opts.OnOutcome(stem, status)
	}
}

func sleep(ctx context.Context, delay time.Duration, sleeper func(time.Duration)) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if sleeper != nil {
		sleeper(delay)
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
