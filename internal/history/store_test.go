package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentumsubash/ytd/internal/history"
	"github.com/momentumsubash/ytd/internal/progress"
	"github.com/momentumsubash/ytd/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	run, err := store.StartRun(ctx, "run-1", 2)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run.ID != "run-1" || run.Playlists != 2 {
		t.Fatalf("unexpected run: %#v", run)
	}
	if run.StartedAt.IsZero() {
		t.Fatal("expected started timestamp to be set")
	}
	if run.Finished() {
		t.Fatal("new run should not be finished")
	}

	// A second open against the same database must tolerate the
	// already-applied migrations.
	reopened, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	fetched, err := reopened.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched == nil || fetched.ID != "run-1" {
		t.Fatalf("unexpected fetched run: %#v", fetched)
	}
}

func TestStartRunRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	if _, err := store.StartRun(context.Background(), "  ", 1); err == nil {
		t.Fatal("expected error for blank run id")
	}
}

func TestGetRunMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	run, err := store.GetRun(context.Background(), "absent")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil for missing run, got %#v", run)
	}
}

func TestFinishRunUpdatesTotals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	if _, err := store.StartRun(ctx, "run-1", 1); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	totals := history.Totals{Completed: 5, Skipped: 2, Failed: 1}
	if err := store.FinishRun(ctx, "run-1", totals); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !run.Finished() {
		t.Fatal("expected run to be finished")
	}
	if run.Completed != 5 || run.Skipped != 2 || run.Failed != 1 {
		t.Fatalf("unexpected totals: %#v", run)
	}
}

func TestFinishRunUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	if err := store.FinishRun(context.Background(), "absent", history.Totals{}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRecordOutcomeRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	if _, err := store.StartRun(ctx, "run-1", 1); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	records := []history.Record{
		{
			RunID:    "run-1",
			Playlist: "PL123",
			Stage:    progress.StageDownload,
			Stem:     "talk",
			Status:   progress.StatusCompleted,
			Bytes:    2048,
			Duration: 1500 * time.Millisecond,
		},
		{
			RunID:    "run-1",
			Playlist: "PL123",
			Stage:    progress.StageMerge,
			Stem:     "talk",
			Status:   progress.StatusFailed,
			Detail:   "ffmpeg mux failed",
		},
		{
			RunID:  "run-1",
			Stage:  progress.StageUpload,
			Stem:   "talk",
			Status: progress.StatusSkipped,
		},
	}
	for _, rec := range records {
		if err := store.RecordOutcome(ctx, rec); err != nil {
			t.Fatalf("RecordOutcome failed: %v", err)
		}
	}

	outcomes, err := store.RunOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunOutcomes failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	first := outcomes[0]
	if first.Stage != progress.StageDownload || first.Status != progress.StatusCompleted {
		t.Fatalf("unexpected first outcome: %#v", first)
	}
	if first.Playlist != "PL123" || first.Bytes != 2048 {
		t.Fatalf("unexpected first outcome fields: %#v", first)
	}
	if first.Duration != 1500*time.Millisecond {
		t.Fatalf("expected duration to round-trip, got %v", first.Duration)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp to be set")
	}

	if outcomes[1].Detail != "ffmpeg mux failed" {
		t.Fatalf("unexpected detail: %q", outcomes[1].Detail)
	}
	if outcomes[2].Playlist != "" || outcomes[2].Status != progress.StatusSkipped {
		t.Fatalf("unexpected third outcome: %#v", outcomes[2])
	}
}

func TestRecordOutcomeValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	err := store.RecordOutcome(ctx, history.Record{Stem: "talk", Stage: progress.StageDownload})
	if err == nil {
		t.Fatal("expected error for missing run id")
	}
	err = store.RecordOutcome(ctx, history.Record{RunID: "run-1", Stage: progress.StageDownload})
	if err == nil {
		t.Fatal("expected error for missing stem")
	}
}

func TestRecordOutcomeRequiresExistingRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	rec := history.Record{
		RunID:  "never-started",
		Stage:  progress.StageDownload,
		Stem:   "talk",
		Status: progress.StatusCompleted,
	}
	if err := store.RecordOutcome(context.Background(), rec); err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
}

func TestRunOutcomesEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	if _, err := store.StartRun(ctx, "run-1", 1); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	outcomes, err := store.RunOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunOutcomes failed: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if _, err := store.StartRun(ctx, id, 1); err != nil {
			t.Fatalf("StartRun %s failed: %v", id, err)
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Fatalf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}
