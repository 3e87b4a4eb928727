package history

import (
	"time"

	"github.com/momentumsubash/ytd/internal/progress"
)

// Run is one pipeline invocation recorded in the journal.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Playlists  int
	Completed  int
	Skipped    int
	Failed     int
}

// Finished reports whether the run recorded a finish timestamp. Runs without
// one were interrupted or are still in flight.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// Totals aggregates unit outcomes for a finished run.
type Totals struct {
	Completed int
	Skipped   int
	Failed    int
}

// Record is one unit outcome appended to the journal.
type Record struct {
	ID        int64
	RunID     string
	Playlist  string
	Stage     progress.Stage
	Stem      string
	Status    progress.Status
	Detail    string
	Bytes     int64
	Duration  time.Duration
	CreatedAt time.Time
}
