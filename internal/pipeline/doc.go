// Package pipeline drives the full download, merge, and upload flow over the
// configured playlists.
//
// The Orchestrator owns the per-playlist state machine: it lists each
// playlist, resumes from the persisted cursor, runs the three stages in
// sequence through stagerun, derives final unit outcomes, and marks a
// playlist completed only when every known unit carries a terminal status.
// It also owns the session statistics aggregate, the flock-based run lock
// that keeps two processes away from the same state directory, and the
// best-effort writes into the history journal.
//
// Per-unit failures stay inside the stage results; Process returns an error
// only for fatal conditions such as a held lock, a failed preflight check,
// or cancellation.
package pipeline
