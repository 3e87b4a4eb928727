package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/logging"
	"github.com/momentumsubash/ytd/internal/pipeline"
	"github.com/momentumsubash/ytd/internal/playlist"
	"github.com/momentumsubash/ytd/internal/preflight"
	"github.com/momentumsubash/ytd/internal/progress"
	"github.com/momentumsubash/ytd/internal/services"
	"github.com/momentumsubash/ytd/internal/services/ytdlp"
	"github.com/momentumsubash/ytd/internal/testsupport"
)

const playlistURL = "https://example.com/playlist?list=PL123"

func twoEntryListing() ytdlp.Playlist {
	return ytdlp.Playlist{
		ID:    "PL123",
		Title: "Field Recordings",
		Entries: []ytdlp.Entry{
			{ID: "vid1", Title: "First Clip", URL: "https://example.com/v/vid1"},
			{ID: "vid2", Title: "Second Clip", URL: "https://example.com/v/vid2"},
		},
	}
}

func TestProcessHappyPath(t *testing.T) {
	tp := newTestPipeline(t, testsupport.WithStorage("127.0.0.1:9000", "media"))
	tp.extractor.listings[playlistURL] = twoEntryListing()

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	completed, skipped, failed := summary.OutcomeTotals()
	if completed != 2 || skipped != 0 || failed != 0 {
		t.Fatalf("unexpected totals completed=%d skipped=%d failed=%d", completed, skipped, failed)
	}
	for _, stage := range progress.Stages() {
		if got := summary.Stages[stage].Successful; got != 2 {
			t.Fatalf("stage %s: expected 2 successes, got %d", stage, got)
		}
	}
	if summary.BytesUploaded != 4096 {
		t.Fatalf("expected 4096 bytes uploaded, got %d", summary.BytesUploaded)
	}

	if len(summary.Playlists) != 1 {
		t.Fatalf("expected one playlist report, got %d", len(summary.Playlists))
	}
	report := summary.Playlists[0]
	if report.ID != "PL123" || !report.Completed || report.Err != nil {
		t.Fatalf("unexpected report %+v", report)
	}

	if tp.storage.ensured != 1 {
		t.Fatalf("expected bucket ensured once, got %d", tp.storage.ensured)
	}
	for _, key := range []string{"PL123/First Clip [vid1].mp4", "PL123/Second Clip [vid2].mp4"} {
		if _, ok := tp.storage.objects[key]; !ok {
			t.Fatalf("expected object %q in storage", key)
		}
	}

	st, ok := tp.playlists.Get("PL123")
	if !ok {
		t.Fatal("expected persisted playlist state")
	}
	if !st.Completed || st.Cursor != 2 {
		t.Fatalf("unexpected playlist state completed=%v cursor=%d", st.Completed, st.Cursor)
	}
	if !tp.progress.IsCompleted("First Clip [vid1]", progress.StageUpload, nil) {
		t.Fatal("expected upload completion recorded in progress store")
	}

	// Source cleanup defaults to move, so the staged streams end up in the
	// processed directory.
	staged, err := os.ReadDir(tp.cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("reading staging dir failed: %v", err)
	}
	if len(staged) != 0 {
		t.Fatalf("expected empty staging dir, found %d entries", len(staged))
	}
	processed, err := os.ReadDir(tp.cfg.Paths.ProcessedDir)
	if err != nil {
		t.Fatalf("reading processed dir failed: %v", err)
	}
	if len(processed) != 4 {
		t.Fatalf("expected 4 processed source files, found %d", len(processed))
	}

	runs, err := tp.journal.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID {
		t.Fatalf("expected journal run %s, got %+v", summary.RunID, runs)
	}
	if !runs[0].Finished() || runs[0].Completed != 2 || runs[0].Playlists != 1 {
		t.Fatalf("unexpected journal run %+v", runs[0])
	}
	outcomes, err := tp.journal.RunOutcomes(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("RunOutcomes failed: %v", err)
	}
	if len(outcomes) != 6 {
		t.Fatalf("expected 6 journal outcomes, got %d", len(outcomes))
	}
}

func TestProcessWithoutStorage(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	completed, _, failed := summary.OutcomeTotals()
	if completed != 2 || failed != 0 {
		t.Fatalf("unexpected totals completed=%d failed=%d", completed, failed)
	}
	if summary.BytesUploaded != 0 {
		t.Fatalf("expected no uploaded bytes, got %d", summary.BytesUploaded)
	}
	if _, ok := summary.Playlists[0].Stages[progress.StageUpload]; ok {
		t.Fatal("expected no upload stage without storage")
	}
	for _, name := range []string{"First Clip [vid1].mp4", "Second Clip [vid2].mp4"} {
		if _, err := os.Stat(filepath.Join(tp.cfg.Paths.MergedDir, name)); err != nil {
			t.Fatalf("expected merged output %s: %v", name, err)
		}
	}
}

func TestProcessSkipsCompletedDownloads(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	// The first entry's streams were fetched by an earlier run and are still
	// staged.
	stem := "First Clip [vid1]"
	if err := tp.progress.RecordOutcome(stem, progress.StageDownload, progress.StatusCompleted, progress.Metadata{}); err != nil {
		t.Fatalf("seeding progress failed: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(tp.cfg.Paths.StagingDir, stem+"_video.mp4"), 1024)
	testsupport.WriteFile(t, filepath.Join(tp.cfg.Paths.StagingDir, stem+"_audio.m4a"), 256)

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	dl := summary.Stages[progress.StageDownload]
	if dl.Successful != 1 || dl.Skipped != 1 {
		t.Fatalf("unexpected download counts %+v", dl)
	}
	for _, item := range tp.extractor.downloads {
		if strings.HasPrefix(item, stem+"/") {
			t.Fatalf("expected no downloads for %s, saw %s", stem, item)
		}
	}
	if got := summary.Stages[progress.StageMerge].Successful; got != 2 {
		t.Fatalf("expected both units merged, got %d", got)
	}
	completed, _, failed := summary.OutcomeTotals()
	if completed != 2 || failed != 0 {
		t.Fatalf("unexpected totals completed=%d failed=%d", completed, failed)
	}
}

func TestProcessResumesFromCursor(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	// A previous run fully handled the first entry and advanced the cursor.
	st := playlist.NewState("PL123")
	st.Units = []string{"First Clip [vid1]"}
	st.SetOutcome("First Clip [vid1]", progress.StatusCompleted)
	st.Cursor = 1
	if err := tp.playlists.Put(st); err != nil {
		t.Fatalf("seeding playlist state failed: %v", err)
	}

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, item := range tp.extractor.downloads {
		if !strings.HasPrefix(item, "Second Clip [vid2]/") {
			t.Fatalf("expected downloads only for the second entry, saw %s", item)
		}
	}
	if len(tp.extractor.downloads) != 2 {
		t.Fatalf("expected two stream downloads, got %d", len(tp.extractor.downloads))
	}

	updated, ok := tp.playlists.Get("PL123")
	if !ok {
		t.Fatal("expected persisted playlist state")
	}
	if updated.Cursor != 2 || !updated.Completed {
		t.Fatalf("unexpected state cursor=%d completed=%v", updated.Cursor, updated.Completed)
	}

	completed, skipped, failed := summary.OutcomeTotals()
	if completed != 1 || skipped != 0 || failed != 0 {
		t.Fatalf("unexpected totals completed=%d skipped=%d failed=%d", completed, skipped, failed)
	}
}

func TestProcessIsolatesUnitFailure(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()
	tp.extractor.videoErrs["Second Clip [vid2]"] = services.Wrap(
		services.ErrUnavailable, "download", "fetch streams", "video removed by uploader", nil)

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	completed, _, failed := summary.OutcomeTotals()
	if completed != 1 || failed != 1 {
		t.Fatalf("unexpected totals completed=%d failed=%d", completed, failed)
	}
	dl := summary.Stages[progress.StageDownload]
	if dl.Successful != 1 || dl.Failed != 1 {
		t.Fatalf("unexpected download counts %+v", dl)
	}

	report := summary.Playlists[0]
	if !report.Completed {
		t.Fatal("expected playlist completed: failed is a terminal outcome")
	}

	outcomes, err := tp.journal.RunOutcomes(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("RunOutcomes failed: %v", err)
	}
	var foundFailure bool
	for _, rec := range outcomes {
		if rec.Status == progress.StatusFailed {
			foundFailure = true
			if !strings.Contains(rec.Detail, "video removed by uploader") {
				t.Fatalf("expected failure detail in journal, got %q", rec.Detail)
			}
		}
	}
	if !foundFailure {
		t.Fatal("expected journaled failure record")
	}
}

func TestProcessListingFailureSkipsPlaylist(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listErrs[playlistURL] = services.Wrap(
		services.ErrNotFound, "metadata", "list playlist", "playlist does not exist", nil)

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process should isolate listing failures, got %v", err)
	}

	if len(summary.Playlists) != 1 {
		t.Fatalf("expected one playlist report, got %d", len(summary.Playlists))
	}
	report := summary.Playlists[0]
	if report.Err == nil || !errors.Is(report.Err, services.ErrNotFound) {
		t.Fatalf("expected not-found report error, got %v", report.Err)
	}
	if tp.extractor.listCalls != 1 {
		t.Fatalf("expected a single listing attempt, got %d", tp.extractor.listCalls)
	}
	completed, skipped, failed := summary.OutcomeTotals()
	if completed != 0 || skipped != 0 || failed != 0 {
		t.Fatalf("expected no unit outcomes, got %d/%d/%d", completed, skipped, failed)
	}
}

func TestProcessAlreadyCompletedPlaylist(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	st := playlist.NewState("PL123")
	st.Completed = true
	if err := tp.playlists.Put(st); err != nil {
		t.Fatalf("seeding playlist state failed: %v", err)
	}

	summary, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(tp.extractor.downloads) != 0 {
		t.Fatalf("expected no downloads for a completed playlist, got %v", tp.extractor.downloads)
	}
	if !summary.Playlists[0].Completed {
		t.Fatal("expected report to carry completion")
	}
}

func TestProcessUsesConfiguredPlaylists(t *testing.T) {
	tp := newTestPipeline(t)
	tp.cfg.Pipeline.Playlists = []string{playlistURL}
	tp.extractor.listings[playlistURL] = twoEntryListing()

	summary, err := tp.orch.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if completed, _, _ := summary.OutcomeTotals(); completed != 2 {
		t.Fatalf("expected 2 completed units, got %d", completed)
	}
}

func TestProcessRequiresPlaylists(t *testing.T) {
	tp := newTestPipeline(t)

	_, err := tp.orch.Process(context.Background(), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestProcessPreflightGate(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	restore := pipeline.SetPreflightForTests(func(context.Context, *config.Config) []preflight.Result {
		return []preflight.Result{{Name: "Staging directory", Passed: false, Detail: "not writable"}}
	})
	defer restore()

	_, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Staging directory: not writable") {
		t.Fatalf("expected failed check in error, got %v", err)
	}
	if tp.extractor.listCalls != 0 {
		t.Fatal("expected no listing attempts after failed preflight")
	}
}

func TestProcessRejectsConcurrentRun(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	lock := pipeline.NewRunLock(tp.cfg)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(func() { _ = lock.Release() })

	_, err := tp.orch.Process(context.Background(), []string{playlistURL})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error while lock is held, got %v", err)
	}
	if tp.extractor.listCalls != 0 {
		t.Fatal("expected no listing attempts while lock is held")
	}
}

func TestProcessCancelledContext(t *testing.T) {
	tp := newTestPipeline(t)
	tp.extractor.listings[playlistURL] = twoEntryListing()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := tp.orch.Process(ctx, []string{playlistURL})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if len(summary.Playlists) != 0 {
		t.Fatalf("expected no playlist reports, got %d", len(summary.Playlists))
	}
}

func TestNewValidatesDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	valid := func() pipeline.Deps {
		return pipeline.Deps{
			Extractor: newFakeExtractor(),
			Encoder:   newFakeEncoder(),
			Progress:  progress.NewStore("", logging.NewNop()),
			Playlists: playlist.NewStore(filepath.Join(cfg.Paths.StateDir, "playlists.json"), logging.NewNop()),
		}
	}

	if _, err := pipeline.New(nil, logging.NewNop(), valid()); err == nil {
		t.Fatal("expected error for nil config")
	}

	cases := []struct {
		name   string
		mutate func(*pipeline.Deps)
	}{
		{"missing extractor", func(d *pipeline.Deps) { d.Extractor = nil }},
		{"missing encoder", func(d *pipeline.Deps) { d.Encoder = nil }},
		{"missing progress", func(d *pipeline.Deps) { d.Progress = nil }},
		{"missing playlists", func(d *pipeline.Deps) { d.Playlists = nil }},
	}
	for _, tc := range cases {
		deps := valid()
		tc.mutate(&deps)
		if _, err := pipeline.New(cfg, logging.NewNop(), deps); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	storageCfg := testsupport.NewConfig(t, testsupport.WithStorage("127.0.0.1:9000", "media"))
	if _, err := pipeline.New(storageCfg, logging.NewNop(), valid()); err == nil {
		t.Fatal("expected error for enabled storage without client")
	}

	deps := valid()
	deps.Storage = newFakeStorage()
	orch, err := pipeline.New(storageCfg, logging.NewNop(), deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
