// Package playlist tracks per-playlist pipeline state: the known units, their
// stage statuses and final outcomes, the resume cursor, and completion.
package playlist

import (
	"errors"
	"time"

	"github.com/momentumsubash/ytd/internal/progress"
)

// State is the durable record for one playlist. A playlist is completed only
// when every known unit carries a terminal outcome; partially processed
// playlists keep their cursor so the next run resumes where this one stopped.
type State struct {
	ID           string                                        `json:"id"`
	Title        string                                        `json:"title,omitempty"`
	Units        []string                                      `json:"units,omitempty"`
	UnitStatuses map[string]map[progress.Stage]progress.Status `json:"unit_statuses,omitempty"`
	Outcomes     map[string]progress.Status                    `json:"outcomes,omitempty"`
	Completed    bool                                          `json:"completed"`
	// Cursor is the number of leading source entries fully processed by the
	// download stage; it doubles as the zero-based index of the next entry.
	Cursor      int       `json:"cursor"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewState returns an empty state for the given playlist ID.
func NewState(id string) State {
	return State{ID: id}
}

// EnsureStarted stamps the start time on first use.
func (st *State) EnsureStarted(now time.Time) {
	if st.StartedAt.IsZero() {
		st.StartedAt = now
	}
}

// SetUnitStatus records the status a unit reached at one stage.
func (st *State) SetUnitStatus(unit string, stage progress.Stage, status progress.Status) {
	if unit == "" || stage == "" {
		return
	}
	if st.UnitStatuses == nil {
		st.UnitStatuses = make(map[string]map[progress.Stage]progress.Status)
	}
	if st.UnitStatuses[unit] == nil {
		st.UnitStatuses[unit] = make(map[progress.Stage]progress.Status)
	}
	st.UnitStatuses[unit][stage] = status
}

// UnitStatus returns the recorded status for a unit at one stage.
func (st State) UnitStatus(unit string, stage progress.Stage) (progress.Status, bool) {
	status, found := st.UnitStatuses[unit][stage]
	return status, found
}

// SetOutcome records the final disposition of a unit for this playlist:
// completed when it made it through the last applicable stage, skipped when
// nothing applied (an unpaired leftover, or work finished in an earlier run),
// failed when a stage failure stopped it.
func (st *State) SetOutcome(unit string, status progress.Status) {
	if unit == "" {
		return
	}
	if st.Outcomes == nil {
		st.Outcomes = make(map[string]progress.Status)
	}
	st.Outcomes[unit] = status
}

// Outcome returns the final disposition recorded for a unit.
func (st State) Outcome(unit string) (progress.Status, bool) {
	status, found := st.Outcomes[unit]
	return status, found
}

// AllResolved reports whether every known unit has a terminal outcome.
func (st State) AllResolved() bool {
	for _, unit := range st.Units {
		status, found := st.Outcomes[unit]
		if !found || !status.Terminal() {
			return false
		}
	}
	return true
}

// MarkCompleted flags the playlist as done. It refuses to do so while any
// known unit lacks a terminal outcome.
func (st *State) MarkCompleted(now time.Time) error {
	if !st.AllResolved() {
		return errors.New("playlist has unresolved units")
	}
	st.Completed = true
	st.CompletedAt = now
	return nil
}

// ResumeIndex returns the zero-based source entry index the next run should
// start from. configuredStart is the operator-facing one-based start entry;
// the persisted cursor can move the start forward past already-processed
// entries, but configuration never rewinds behind it.
func (st State) ResumeIndex(configuredStart int) int {
	start := configuredStart - 1
	if start < 0 {
		start = 0
	}
	if st.Cursor > start {
		return st.Cursor
	}
	return start
}

// OutcomeCounts tallies final outcomes by status.
func (st State) OutcomeCounts() map[progress.Status]int {
	counts := make(map[progress.Status]int)
	for _, status := range st.Outcomes {
		counts[status]++
	}
	return counts
}

func (st State) clone() State {
	out := st
	if st.Units != nil {
		out.Units = append([]string(nil), st.Units...)
	}
	if st.UnitStatuses != nil {
		out.UnitStatuses = make(map[string]map[progress.Stage]progress.Status, len(st.UnitStatuses))
		for unit, stages := range st.UnitStatuses {
			inner := make(map[progress.Stage]progress.Status, len(stages))
			for stage, status := range stages {
				inner[stage] = status
			}
			out.UnitStatuses[unit] = inner
		}
	}
	if st.Outcomes != nil {
		out.Outcomes = make(map[string]progress.Status, len(st.Outcomes))
		for unit, status := range st.Outcomes {
			out.Outcomes[unit] = status
		}
	}
	return out
}
