package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/fileutil"
	"github.com/momentumsubash/ytd/internal/history"
	"github.com/momentumsubash/ytd/internal/logging"
	"github.com/momentumsubash/ytd/internal/pairing"
	"github.com/momentumsubash/ytd/internal/playlist"
	"github.com/momentumsubash/ytd/internal/preflight"
	"github.com/momentumsubash/ytd/internal/progress"
	"github.com/momentumsubash/ytd/internal/retry"
	"github.com/momentumsubash/ytd/internal/services"
	"github.com/momentumsubash/ytd/internal/services/ffmpeg"
	"github.com/momentumsubash/ytd/internal/services/objstore"
	"github.com/momentumsubash/ytd/internal/services/ytdlp"
	"github.com/momentumsubash/ytd/internal/stagerun"
)

// mergedExt is the container extension merged outputs are written with.
const mergedExt = ".mp4"

// Deps bundles the collaborators a run needs. Storage may be nil when the
// upload stage is disabled; Journal may be nil to run without history.
type Deps struct {
	Extractor ytdlp.Extractor
	Encoder   ffmpeg.Encoder
	Storage   objstore.Client
	Progress  *progress.Store
	Playlists *playlist.Store
	Journal   *history.Store
}

// Orchestrator sequences the download, merge, and upload stages over
// playlists, one unit at a time.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	extractor ytdlp.Extractor
	encoder   ffmpeg.Encoder
	storage   objstore.Client
	progress  *progress.Store
	playlists *playlist.Store
	journal   *history.Store
	lock      *RunLock

	// sleeper overrides delay sleeps in tests.
	sleeper func(time.Duration)
}

// New wires an orchestrator from explicit collaborators.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("extractor required")
	}
	if deps.Encoder == nil {
		return nil, errors.New("encoder required")
	}
	if deps.Progress == nil {
		return nil, errors.New("progress store required")
	}
	if deps.Playlists == nil {
		return nil, errors.New("playlist store required")
	}
	if cfg.Storage.Enabled && deps.Storage == nil {
		return nil, errors.New("storage client required when uploads are enabled")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		extractor: deps.Extractor,
		encoder:   deps.Encoder,
		storage:   deps.Storage,
		progress:  deps.Progress,
		playlists: deps.Playlists,
		journal:   deps.Journal,
		lock:      NewRunLock(cfg),
	}, nil
}

// NewFromConfig builds the production collaborators and wires an
// orchestrator around them. The caller owns Close.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "prepare directories",
			"state directories are not writable", err)
	}

	extractor, err := ytdlp.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	encoder, err := ffmpeg.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}

	var storage objstore.Client
	if cfg.Storage.Enabled {
		client, storageErr := objstore.NewMinio(cfg)
		if storageErr != nil {
			return nil, fmt.Errorf("build storage client: %w", storageErr)
		}
		storage = client
	}

	journal, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "history journal unavailable", "journal_degraded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "runs will not appear in history"))
		journal = nil
	}

	return New(cfg, logger, Deps{
		Extractor: extractor,
		Encoder:   encoder,
		Storage:   storage,
		Progress:  progress.NewStore(cfg.ProgressStatePath(), logger),
		Playlists: playlist.NewStore(cfg.PlaylistStatePath(), logger),
		Journal:   journal,
	})
}

// Close releases resources held by the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil || o.journal == nil {
		return nil
	}
	return o.journal.Close()
}

// Process runs the pipeline over the given playlist URLs, falling back to
// the configured list when none are passed. Per-unit failures stay in the
// summary; the returned error is reserved for fatal conditions and
// cancellation. The summary is valid even when the error is non-nil.
func (o *Orchestrator) Process(ctx context.Context, urls []string) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(urls) == 0 {
		urls = o.cfg.Pipeline.Playlists
	}
	if len(urls) == 0 {
		return Summary{}, services.Wrap(services.ErrConfiguration, "run", "select playlists",
			"no playlists configured", nil)
	}

	if err := o.cfg.EnsureDirectories(); err != nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "run", "prepare directories",
			"state directories are not writable", err)
	}
	if err := o.lock.Acquire(); err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := o.lock.Release(); err != nil {
			o.logger.Warn("failed to release run lock",
				logging.Error(err),
				logging.String(logging.FieldEventType, "run_lock_release_failed"))
		}
	}()

	runID := uuid.NewString()
	runCtx := services.WithRunID(ctx, runID)
	runLogger := logging.WithContext(runCtx, o.logger)

	if o.cfg.Storage.Enabled && o.storage != nil {
		if err := o.storage.EnsureBucket(runCtx); err != nil {
			return Summary{}, err
		}
	}
	if err := o.gatePreflight(runCtx, runLogger); err != nil {
		return Summary{}, err
	}

	stats := newSessionStats(runID)
	runLogger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("playlist_count", len(urls)))
	o.journalStartRun(runCtx, runLogger, runID, len(urls))

	var runErr error
	for i, url := range urls {
		if err := runCtx.Err(); err != nil {
			runErr = err
			break
		}
		report := o.processPlaylist(runCtx, stats, url)
		stats.addPlaylist(report)
		if report.Err != nil && runCtx.Err() != nil {
			runErr = runCtx.Err()
			break
		}
		if i < len(urls)-1 {
			if err := o.sleep(runCtx, o.cfg.PlaylistDelay()); err != nil {
				runErr = err
				break
			}
		}
	}

	summary := stats.summary()
	o.journalFinishRun(runLogger, summary)

	completed, skipped, failed := summary.OutcomeTotals()
	runLogger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("completed", completed),
		logging.Int("skipped", skipped),
		logging.Int("failed", failed),
		logging.Int64("bytes_uploaded", summary.BytesUploaded),
		logging.Duration("elapsed", summary.Elapsed))

	return summary, runErr
}

func (o *Orchestrator) gatePreflight(ctx context.Context, logger *slog.Logger) error {
	failed := preflight.Failed(runPreflight(ctx, o.cfg))
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, r := range failed {
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and rerun"))
		details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "run", "preflight", strings.Join(details, "; "), nil)
}

func (o *Orchestrator) processPlaylist(ctx context.Context, stats *sessionStats, url string) PlaylistReport {
	report := PlaylistReport{
		URL:      url,
		Stages:   make(map[progress.Stage]StageCounts),
		Outcomes: make(map[progress.Status]int),
	}

	var listing ytdlp.Playlist
	_, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: o.cfg.Pipeline.MaxAttempts,
		BaseDelay:   o.cfg.RetryBackoff(),
		Classify:    services.Retryable,
		Sleeper:     o.sleeper,
	}, func(attemptCtx context.Context) error {
		var listErr error
		listing, listErr = o.extractor.Playlist(attemptCtx, url)
		return listErr
	})
	if err != nil {
		report.ID = url
		report.Err = err
		logging.ErrorWithContext(o.logger, "playlist listing failed", "playlist_listing_failed",
			logging.Error(err),
			logging.String("url", url),
			logging.String(logging.FieldImpact, "playlist is skipped this run"))
		return report
	}

	id := listing.ID
	if id == "" {
		id = url
	}
	report.ID = id
	report.Title = listing.Title

	plCtx := services.WithPlaylist(ctx, id)
	plLogger := logging.WithContext(plCtx, o.logger)

	st, found := o.playlists.Get(id)
	if !found {
		st = playlist.NewState(id)
	}
	st.Title = listing.Title
	if st.Completed {
		plLogger.Info("playlist already completed",
			logging.String(logging.FieldEventType, "playlist_already_completed"))
		report.Completed = true
		return report
	}
	st.EnsureStarted(time.Now().UTC())

	resume := st.ResumeIndex(o.cfg.Pipeline.StartIndex)
	if resume > len(listing.Entries) {
		resume = len(listing.Entries)
	}
	batch := listing.Entries[resume:]

	entries := make(map[string]ytdlp.Entry, len(batch))
	stems := make([]string, 0, len(batch))
	for _, entry := range batch {
		stem := ytdlp.EntryStem(entry)
		if stem == "" {
			continue
		}
		if _, dup := entries[stem]; dup {
			plLogger.Warn("duplicate stem in listing",
				logging.String(logging.FieldStem, stem),
				logging.String(logging.FieldEventType, "playlist_duplicate_stem"),
				logging.String(logging.FieldImpact, "later entry is ignored"))
			continue
		}
		entries[stem] = entry
		stems = append(stems, stem)
	}
	st.Units = appendMissing(st.Units, stems)
	if err := o.playlists.Put(st); err != nil {
		report.Err = fmt.Errorf("persist playlist state: %w", err)
		return report
	}

	plLogger.Info("playlist started",
		logging.String(logging.FieldEventType, "playlist_start"),
		logging.String("title", listing.Title),
		logging.Int("entries", len(listing.Entries)),
		logging.Int("resume_index", resume),
		logging.Int("batch_size", len(stems)))

	// Download.
	dlResult, dlErr := o.runStage(plCtx, stats, &st, &downloadOperation{
		extractor:  o.extractor,
		entries:    entries,
		stagingDir: o.cfg.Paths.StagingDir,
	}, stems)
	st.Cursor = resume + len(dlResult.Outcomes)
	report.Stages[progress.StageDownload] = countsOf(dlResult)
	o.journalOutcomes(plCtx, plLogger, stats.runID, id, dlResult)
	if err := o.playlists.Put(st); err != nil {
		report.Err = fmt.Errorf("persist playlist state: %w", err)
		return report
	}
	if dlErr != nil {
		report.Err = dlErr
		return report
	}
	if err := o.sleep(plCtx, o.cfg.StageDelay()); err != nil {
		report.Err = err
		return report
	}

	// Rescan the staging directory to form logical units.
	files, err := fileutil.ListFiles(o.cfg.Paths.StagingDir)
	if err != nil {
		report.Err = fmt.Errorf("scan staging directory: %w", err)
		return report
	}
	match := pairing.Match(files, o.pairingConfig())
	for _, um := range match.Unmatched {
		plLogger.Warn("unmatched staging file",
			logging.String("file", um.Name),
			logging.String("reason", um.Reason),
			logging.String(logging.FieldEventType, "pairing_unmatched"),
			logging.String(logging.FieldImpact, "file is left in staging untouched"))
	}
	pairs := make(map[string]pairing.Unit, len(match.Pairs))
	for _, unit := range match.Pairs {
		pairs[unit.Stem] = unit
	}

	// Merge over every known unit whose downloads are complete and whose
	// staged pair is still present.
	mergeStems := make([]string, 0, len(st.Units))
	for _, stem := range st.Units {
		if pairs[stem].IsPair() && o.progress.IsCompleted(stem, progress.StageDownload, nil) {
			mergeStems = append(mergeStems, stem)
		}
	}
	mergeResult, mergeErr := o.runStage(plCtx, stats, &st, &mergeOperation{
		encoder:      o.encoder,
		units:        pairs,
		stagingDir:   o.cfg.Paths.StagingDir,
		mergedDir:    o.cfg.Paths.MergedDir,
		cleanupMode:  o.cfg.Pipeline.SourceCleanup,
		processedDir: o.cfg.Paths.ProcessedDir,
	}, mergeStems)
	report.Stages[progress.StageMerge] = countsOf(mergeResult)
	o.journalOutcomes(plCtx, plLogger, stats.runID, id, mergeResult)
	if err := o.playlists.Put(st); err != nil {
		report.Err = fmt.Errorf("persist playlist state: %w", err)
		return report
	}
	if mergeErr != nil {
		report.Err = mergeErr
		return report
	}

	// Upload everything merged so far, including units merged by earlier
	// interrupted runs.
	var uploadResult stagerun.Result
	if o.cfg.Storage.Enabled && o.storage != nil {
		if err := o.sleep(plCtx, o.cfg.StageDelay()); err != nil {
			report.Err = err
			return report
		}

		names := make(map[string]string)
		uploadStems := make([]string, 0, len(st.Units))
		for _, stem := range st.Units {
			if !o.progress.IsCompleted(stem, progress.StageMerge, nil) {
				continue
			}
			name := stem + mergedExt
			if unit, ok := pairs[stem]; ok && unit.OutputName != "" {
				name = unit.OutputName
			}
			names[stem] = name
			uploadStems = append(uploadStems, stem)
		}

		var upErr error
		uploadResult, upErr = o.runStage(plCtx, stats, &st, &uploadOperation{
			store:     o.storage,
			mergedDir: o.cfg.Paths.MergedDir,
			playlist:  id,
			names:     names,
		}, uploadStems)
		report.Stages[progress.StageUpload] = countsOf(uploadResult)
		for _, out := range uploadResult.Outcomes {
			if out.Status == progress.StatusCompleted {
				stats.addUploadedBytes(out.Metadata.SizeBytes)
			}
		}
		o.journalOutcomes(plCtx, plLogger, stats.runID, id, uploadResult)
		if err := o.playlists.Put(st); err != nil {
			report.Err = fmt.Errorf("persist playlist state: %w", err)
			return report
		}
		if upErr != nil {
			report.Err = upErr
			return report
		}
	}

	// Resolve final outcomes for every unit touched this run.
	dlStatus := statusMap(dlResult)
	mergeStatus := statusMap(mergeResult)
	uploadStatus := statusMap(uploadResult)
	touched := 0
	for _, stem := range st.Units {
		_, inDl := dlStatus[stem]
		_, inMerge := mergeStatus[stem]
		_, inUpload := uploadStatus[stem]
		if !inDl && !inMerge && !inUpload {
			continue
		}
		touched++
		outcome := o.resolveOutcome(stem, dlStatus, mergeStatus, uploadStatus)
		st.SetOutcome(stem, outcome)
		report.Outcomes[outcome]++
	}
	report.Units = touched

	if st.AllResolved() {
		if err := st.MarkCompleted(time.Now().UTC()); err == nil {
			report.Completed = true
		}
	}
	if err := o.playlists.Put(st); err != nil {
		report.Err = fmt.Errorf("persist playlist state: %w", err)
		return report
	}

	plLogger.Info("playlist finished",
		logging.String(logging.FieldEventType, "playlist_complete"),
		logging.Bool("completed", st.Completed),
		logging.Int("units", touched),
		logging.Int("successful", report.Outcomes[progress.StatusCompleted]),
		logging.Int("skipped", report.Outcomes[progress.StatusSkipped]),
		logging.Int("failed", report.Outcomes[progress.StatusFailed]))

	return report
}

// resolveOutcome reduces a unit's per-stage statuses to its final
// disposition: failed wherever a stage failed, the last applicable stage's
// status for paired units, and skipped for units nothing downstream applied
// to.
func (o *Orchestrator) resolveOutcome(stem string, dl, merge, upload map[string]progress.Status) progress.Status {
	for _, statuses := range []map[string]progress.Status{dl, merge, upload} {
		if statuses[stem] == progress.StatusFailed {
			return progress.StatusFailed
		}
	}
	if o.cfg.Storage.Enabled {
		if status, ok := upload[stem]; ok {
			return status
		}
		return progress.StatusSkipped
	}
	if status, ok := merge[stem]; ok {
		return status
	}
	return progress.StatusSkipped
}

func (o *Orchestrator) runStage(ctx context.Context, stats *sessionStats, st *playlist.State, op stagerun.Operation, stems []string) (stagerun.Result, error) {
	return stagerun.Run(ctx, stagerun.Options{
		Logger:       o.logger,
		Progress:     o.progress,
		Operation:    op,
		Stems:        stems,
		MaxAttempts:  o.cfg.Pipeline.MaxAttempts,
		RetryBackoff: o.cfg.RetryBackoff(),
		ItemDelay:    o.cfg.ItemDelay(),
		Sleeper:      o.sleeper,
		OnOutcome: func(stem string, status progress.Status) {
			stats.recordStageOutcome(op.Stage(), status)
			st.SetUnitStatus(stem, op.Stage(), status)
		},
	})
}

func (o *Orchestrator) pairingConfig() pairing.Config {
	return MatcherConfig(o.cfg)
}

// MatcherConfig maps the matching section of the config onto the pairing
// matcher. The pipeline and the pair diagnostic command share it so both
// always pair the staging directory the same way.
func MatcherConfig(cfg *config.Config) pairing.Config {
	return pairing.Config{
		VideoExtensions: cfg.Matching.VideoExtensions,
		AudioExtensions: cfg.Matching.AudioExtensions,
		VideoSuffixes:   cfg.Matching.VideoSuffixes,
		AudioSuffixes:   cfg.Matching.AudioSuffixes,
		Fuzzy:           cfg.Matching.Fuzzy,
		OutputExt:       mergedExt,
	}
}

func (o *Orchestrator) journalStartRun(ctx context.Context, logger *slog.Logger, runID string, playlists int) {
	if o.journal == nil {
		return
	}
	if _, err := o.journal.StartRun(ctx, runID, playlists); err != nil {
		logging.WarnWithContext(logger, "history journal write failed", "journal_degraded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will not appear in history"))
	}
}

// journalOutcomes appends a stage's outcomes to the journal. Writes keep
// going after cancellation so an interrupted run still leaves a record.
func (o *Orchestrator) journalOutcomes(ctx context.Context, logger *slog.Logger, runID, playlistID string, result stagerun.Result) {
	if o.journal == nil {
		return
	}
	writeCtx := context.WithoutCancel(ctx)
	for _, out := range result.Outcomes {
		rec := history.Record{
			RunID:    runID,
			Playlist: playlistID,
			Stage:    result.Stage,
			Stem:     out.Stem,
			Status:   out.Status,
			Detail:   out.Metadata.Detail,
			Bytes:    out.Metadata.SizeBytes,
			Duration: out.Elapsed,
		}
		if err := o.journal.RecordOutcome(writeCtx, rec); err != nil {
			logging.WarnWithContext(logger, "history journal write failed", "journal_degraded",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history is incomplete"))
			return
		}
	}
}

func (o *Orchestrator) journalFinishRun(logger *slog.Logger, summary Summary) {
	if o.journal == nil {
		return
	}
	completed, skipped, failed := summary.OutcomeTotals()
	err := o.journal.FinishRun(context.Background(), summary.RunID, history.Totals{
		Completed: completed,
		Skipped:   skipped,
		Failed:    failed,
	})
	if err != nil {
		logging.WarnWithContext(logger, "history journal write failed", "journal_degraded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run totals are missing from history"))
	}
}

func (o *Orchestrator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if o.sleeper != nil {
		o.sleeper(delay)
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

func appendMissing(units, stems []string) []string {
	known := make(map[string]struct{}, len(units))
	for _, unit := range units {
		known[unit] = struct{}{}
	}
	for _, stem := range stems {
		if _, ok := known[stem]; ok {
			continue
		}
		units = append(units, stem)
		known[stem] = struct{}{}
	}
	return units
}

func statusMap(result stagerun.Result) map[string]progress.Status {
	statuses := make(map[string]progress.Status, len(result.Outcomes))
	for _, out := range result.Outcomes {
		statuses[out.Stem] = out.Status
	}
	return statuses
}

func countsOf(result stagerun.Result) StageCounts {
	counts := result.Counts()
	return StageCounts{
		Successful: counts[progress.StatusCompleted],
		Skipped:    counts[progress.StatusSkipped],
		Failed:     counts[progress.StatusFailed],
	}
}
