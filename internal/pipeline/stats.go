package pipeline

import (
	"time"

	"github.com/momentumsubash/ytd/internal/progress"
)

// StageCounts tallies unit outcomes for one stage.
type StageCounts struct {
	Successful int
	Skipped    int
	Failed     int
}

// Total returns the number of units the stage touched.
func (c StageCounts) Total() int {
	return c.Successful + c.Skipped + c.Failed
}

// PlaylistReport summarizes one playlist's pass through the pipeline. Err is
// set when the playlist could not be processed at all, for example when the
// listing call failed; per-unit failures show up in the counts instead.
type PlaylistReport struct {
	ID        string
	Title     string
	URL       string
	Units     int
	Completed bool
	Stages    map[progress.Stage]StageCounts
	Outcomes  map[progress.Status]int
	Err       error
}

// Summary is the end-of-run report: per-stage and per-playlist counts, bytes
// shipped to storage, and elapsed wall time.
type Summary struct {
	RunID         string
	StartedAt     time.Time
	Elapsed       time.Duration
	Stages        map[progress.Stage]StageCounts
	Playlists     []PlaylistReport
	BytesUploaded int64
}

// OutcomeTotals sums the final unit outcomes resolved during the run.
func (s Summary) OutcomeTotals() (completed, skipped, failed int) {
	for _, report := range s.Playlists {
		completed += report.Outcomes[progress.StatusCompleted]
		skipped += report.Outcomes[progress.StatusSkipped]
		failed += report.Outcomes[progress.StatusFailed]
	}
	return completed, skipped, failed
}

// sessionStats is the single mutable aggregate for one Process call. The
// orchestrator owns it and hands the stage runner a callback; nothing else
// writes to it, so no locking is needed.
type sessionStats struct {
	runID     string
	startedAt time.Time
	stages    map[progress.Stage]StageCounts
	playlists []PlaylistReport
	bytes     int64
}

func newSessionStats(runID string) *sessionStats {
	return &sessionStats{
		runID:     runID,
		startedAt: time.Now().UTC(),
		stages:    make(map[progress.Stage]StageCounts),
	}
}

func (s *sessionStats) recordStageOutcome(stage progress.Stage, status progress.Status) {
	counts := s.stages[stage]
	switch status {
	case progress.StatusCompleted:
		counts.Successful++
	case progress.StatusSkipped:
		counts.Skipped++
	case progress.StatusFailed:
		counts.Failed++
	}
	s.stages[stage] = counts
}

func (s *sessionStats) addUploadedBytes(n int64) {
	if n > 0 {
		s.bytes += n
	}
}

func (s *sessionStats) addPlaylist(report PlaylistReport) {
	s.playlists = append(s.playlists, report)
}

func (s *sessionStats) summary() Summary {
	stages := make(map[progress.Stage]StageCounts, len(s.stages))
	for stage, counts := range s.stages {
		stages[stage] = counts
	}
	return Summary{
		RunID:         s.runID,
		StartedAt:     s.startedAt,
		Elapsed:       time.Since(s.startedAt),
		Stages:        stages,
		Playlists:     append([]PlaylistReport(nil), s.playlists...),
		BytesUploaded: s.bytes,
	}
}
