package pipeline_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/history"
	"github.com/momentumsubash/ytd/internal/logging"
	"github.com/momentumsubash/ytd/internal/media/ffprobe"
	"github.com/momentumsubash/ytd/internal/pipeline"
	"github.com/momentumsubash/ytd/internal/playlist"
	"github.com/momentumsubash/ytd/internal/preflight"
	"github.com/momentumsubash/ytd/internal/progress"
	"github.com/momentumsubash/ytd/internal/services/ffmpeg"
	"github.com/momentumsubash/ytd/internal/services/objstore"
	"github.com/momentumsubash/ytd/internal/services/ytdlp"
	"github.com/momentumsubash/ytd/internal/testsupport"
)

type fakeExtractor struct {
	listings  map[string]ytdlp.Playlist
	listErrs  map[string]error
	listCalls int
	videoErrs map[string]error
	audioErrs map[string]error
	downloads []string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		listings:  make(map[string]ytdlp.Playlist),
		listErrs:  make(map[string]error),
		videoErrs: make(map[string]error),
		audioErrs: make(map[string]error),
	}
}

func (f *fakeExtractor) Playlist(_ context.Context, url string) (ytdlp.Playlist, error) {
	f.listCalls++
	if err := f.listErrs[url]; err != nil {
		return ytdlp.Playlist{}, err
	}
	return f.listings[url], nil
}

func (f *fakeExtractor) DownloadVideo(_ context.Context, _, destDir, stem string) (string, error) {
	if err := f.videoErrs[stem]; err != nil {
		return "", err
	}
	f.downloads = append(f.downloads, stem+"/video")
	path := filepath.Join(destDir, stem+"_video.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x11}, 1024), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeExtractor) DownloadAudio(_ context.Context, _, destDir, stem string) (string, error) {
	if err := f.audioErrs[stem]; err != nil {
		return "", err
	}
	f.downloads = append(f.downloads, stem+"/audio")
	path := filepath.Join(destDir, stem+"_audio.m4a")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x22}, 256), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeEncoder struct {
	output   []byte
	mergeErr error
	merges   []string
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{output: bytes.Repeat([]byte{0x33}, 2048)}
}

func (f *fakeEncoder) Merge(_ context.Context, req ffmpeg.MergeRequest) (ffmpeg.MergeResult, error) {
	if f.mergeErr != nil {
		return ffmpeg.MergeResult{}, f.mergeErr
	}
	if err := os.WriteFile(req.OutputPath, f.output, 0o644); err != nil {
		return ffmpeg.MergeResult{}, err
	}
	f.merges = append(f.merges, filepath.Base(req.OutputPath))
	return ffmpeg.MergeResult{
		OutputPath:      req.OutputPath,
		SizeBytes:       int64(len(f.output)),
		DurationSeconds: 30,
		VideoStreams:    1,
		AudioStreams:    1,
	}, nil
}

func (f *fakeEncoder) Probe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{}, nil
}

type fakeStorage struct {
	bucket  string
	objects map[string][]byte
	ensured int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{bucket: "media", objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, req objstore.PutRequest) (objstore.PutResult, error) {
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return objstore.PutResult{}, err
	}
	f.objects[req.Key] = data
	return objstore.PutResult{Bucket: f.bucket, Key: req.Key, SizeBytes: int64(len(data)), ETag: "etag"}, nil
}

func (f *fakeStorage) Stat(_ context.Context, key string) (objstore.ObjectInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return objstore.ObjectInfo{Key: key}, nil
	}
	return objstore.ObjectInfo{Key: key, SizeBytes: int64(len(data)), ETag: "etag", Exists: true}, nil
}

func (f *fakeStorage) EnsureBucket(context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeStorage) Health(context.Context) error {
	return nil
}

// testPipeline bundles an orchestrator with its fakes and stores so tests can
// inspect every side of a run.
type testPipeline struct {
	cfg       *config.Config
	extractor *fakeExtractor
	encoder   *fakeEncoder
	storage   *fakeStorage
	progress  *progress.Store
	playlists *playlist.Store
	journal   *history.Store
	orch      *pipeline.Orchestrator
}

func newTestPipeline(t *testing.T, opts ...testsupport.ConfigOption) *testPipeline {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Pipeline.RetryBackoffSeconds = 0
	cfg.Pipeline.ItemDelaySeconds = 0
	cfg.Pipeline.StageDelaySeconds = 0
	cfg.Pipeline.PlaylistDelaySeconds = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	restore := pipeline.SetPreflightForTests(stubPreflight)
	t.Cleanup(restore)

	tp := &testPipeline{
		cfg:       cfg,
		extractor: newFakeExtractor(),
		encoder:   newFakeEncoder(),
		progress:  progress.NewStore(filepath.Join(cfg.Paths.StateDir, "progress.json"), logging.NewNop()),
		playlists: playlist.NewStore(filepath.Join(cfg.Paths.StateDir, "playlists.json"), logging.NewNop()),
		journal:   testsupport.MustOpenJournal(t, cfg),
	}
	deps := pipeline.Deps{
		Extractor: tp.extractor,
		Encoder:   tp.encoder,
		Progress:  tp.progress,
		Playlists: tp.playlists,
		Journal:   tp.journal,
	}
	if cfg.Storage.Enabled {
		tp.storage = newFakeStorage()
		deps.Storage = tp.storage
	}

	orch, err := pipeline.New(cfg, logging.NewNop(), deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tp.orch = orch
	return tp
}

func stubPreflight(context.Context, *config.Config) []preflight.Result {
	return nil
}
