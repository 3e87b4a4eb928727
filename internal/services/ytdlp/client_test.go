package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/services"
)

type fakeExecutor struct {
	runArgs    []string
	outputArgs []string
	runFn      func(ctx context.Context, binary string, args []string, onLine func(string)) error
	outputFn   func(ctx context.Context, binary string, args []string) ([]byte, error)
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	f.runArgs = args
	if f.runFn != nil {
		return f.runFn(ctx, binary, args, onLine)
	}
	return nil
}

func (f *fakeExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	f.outputArgs = args
	if f.outputFn != nil {
		return f.outputFn(ctx, binary, args)
	}
	return nil, nil
}

func testClient(t *testing.T, exec Executor) *Client {
	t.Helper()
	cfg := config.Default()
	client, err := New(&cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New should reject a nil config")
	}

	cfg := config.Default()
	cfg.Extractor.Binary = "  "
	if _, err := New(&cfg); err == nil {
		t.Error("New should reject an empty binary")
	}
}

func TestPlaylistParsesFlatListing(t *testing.T) {
	payload := `{
		"id": "PL123",
		"title": "Conference Talks",
		"entries": [
			{"id": "abc12345678", "title": "Opening Keynote", "url": "https://www.youtube.com/watch?v=abc12345678"},
			{"id": "def12345678", "title": "[Private video]", "url": ""},
			{"id": "ghi12345678", "title": "Closing Panel", "url": "watch?v=ghi12345678"}
		]
	}`
	exec := &fakeExecutor{
		outputFn: func(context.Context, string, []string) ([]byte, error) {
			return []byte(payload), nil
		},
	}
	client := testClient(t, exec)

	listing, err := client.Playlist(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	if err != nil {
		t.Fatalf("Playlist failed: %v", err)
	}

	if !slices.Contains(exec.outputArgs, "--flat-playlist") || !slices.Contains(exec.outputArgs, "-J") {
		t.Errorf("args missing flat playlist flags: %v", exec.outputArgs)
	}
	if listing.ID != "PL123" || listing.Title != "Conference Talks" {
		t.Errorf("listing = %+v", listing)
	}
	if len(listing.Entries) != 3 {
		t.Fatalf("Entries = %d, want 3", len(listing.Entries))
	}
	if listing.Entries[0].URL != "https://www.youtube.com/watch?v=abc12345678" {
		t.Errorf("absolute URL should pass through, got %q", listing.Entries[0].URL)
	}
	if !listing.Entries[1].Private {
		t.Error("placeholder title should mark the entry private")
	}
	if listing.Entries[1].URL != "https://www.youtube.com/watch?v=def12345678" {
		t.Errorf("missing URL should resolve from the video ID, got %q", listing.Entries[1].URL)
	}
	if listing.Entries[2].URL != "https://www.youtube.com/watch?v=ghi12345678" {
		t.Errorf("relative URL should be prefixed, got %q", listing.Entries[2].URL)
	}
}

func TestPlaylistValidatesURL(t *testing.T) {
	client := testClient(t, &fakeExecutor{})
	if _, err := client.Playlist(context.Background(), "  "); err == nil {
		t.Error("Playlist should reject an empty URL")
	}
}

func TestPlaylistClassifiesRateLimit(t *testing.T) {
	exec := &fakeExecutor{
		outputFn: func(context.Context, string, []string) ([]byte, error) {
			return nil, errors.New("exit status 1: ERROR: HTTP Error 429: Too Many Requests")
		},
	}
	client := testClient(t, exec)

	_, err := client.Playlist(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("err = %v, want rate-limited kind", err)
	}
	if !services.Retryable(err) {
		t.Error("rate limit errors should be retryable")
	}
}

func TestDownloadVideoBuildsArgsAndFindsOutput(t *testing.T) {
	destDir := t.TempDir()
	exec := &fakeExecutor{
		runFn: func(_ context.Context, _ string, args []string, _ func(string)) error {
			return os.WriteFile(filepath.Join(destDir, "talk_video.webm"), []byte("video"), 0o644)
		},
	}

	cfg := config.Default()
	cfg.Extractor.CookiesFile = "/tmp/cookies.txt"
	cfg.Extractor.RateLimit = "4M"
	cfg.Extractor.Proxy = "socks5://10.0.0.1:1080"
	client, err := New(&cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := client.DownloadVideo(context.Background(), "https://www.youtube.com/watch?v=abc", destDir, "talk")
	if err != nil {
		t.Fatalf("DownloadVideo failed: %v", err)
	}
	if path != filepath.Join(destDir, "talk_video.webm") {
		t.Errorf("path = %q", path)
	}

	args := exec.runArgs
	for _, want := range []string{"--no-playlist", "-f", cfg.Extractor.VideoFormat, "-P", destDir, "-o", "talk_video.%(ext)s", "--cookies", "/tmp/cookies.txt", "--limit-rate", "4M", "--proxy", "socks5://10.0.0.1:1080"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("URL should be the final argument: %v", args)
	}
}

func TestDownloadAudioUsesAudioFormat(t *testing.T) {
	destDir := t.TempDir()
	exec := &fakeExecutor{
		runFn: func(_ context.Context, _ string, args []string, _ func(string)) error {
			return os.WriteFile(filepath.Join(destDir, "talk_audio.m4a"), []byte("audio"), 0o644)
		},
	}
	cfg := config.Default()
	client, err := New(&cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := client.DownloadAudio(context.Background(), "https://www.youtube.com/watch?v=abc", destDir, "talk")
	if err != nil {
		t.Fatalf("DownloadAudio failed: %v", err)
	}
	if filepath.Base(path) != "talk_audio.m4a" {
		t.Errorf("path = %q", path)
	}
	if !slices.Contains(exec.runArgs, cfg.Extractor.AudioFormat) {
		t.Errorf("args should carry the audio format selector: %v", exec.runArgs)
	}
	if !slices.Contains(exec.runArgs, "talk_audio.%(ext)s") {
		t.Errorf("args should carry the audio output template: %v", exec.runArgs)
	}
}

func TestDownloadFailureClassification(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		marker    error
		retryable bool
	}{
		{"rate limited", "ERROR: HTTP Error 429: Too Many Requests", services.ErrRateLimited, true},
		{"timeout", "ERROR: Connection timed out", services.ErrTimeout, true},
		{"network", "ERROR: Connection reset by peer", services.ErrTransient, true},
		{"members only", "ERROR: Join this channel to get access to members-only content", services.ErrForbidden, false},
		{"private", "ERROR: Private video. Sign in if you've been granted access", services.ErrForbidden, false},
		{"geo blocked", "ERROR: The uploader has not made this video available in your country", services.ErrForbidden, false},
		{"removed", "ERROR: Video unavailable. This video has been removed by the uploader", services.ErrUnavailable, false},
		{"unknown", "ERROR: Unable to extract player response", services.ErrExternalTool, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			destDir := t.TempDir()
			exec := &fakeExecutor{
				runFn: func(_ context.Context, _ string, _ []string, onLine func(string)) error {
					onLine(tt.line)
					return fmt.Errorf("exit status 1")
				},
			}
			client := testClient(t, exec)

			_, err := client.DownloadVideo(context.Background(), "https://www.youtube.com/watch?v=abc", destDir, "talk")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("err = %v, want marker %v", err, tt.marker)
			}
			if services.Retryable(err) != tt.retryable {
				t.Errorf("Retryable = %v, want %v", services.Retryable(err), tt.retryable)
			}
		})
	}
}

func TestDownloadMissingOutputFails(t *testing.T) {
	client := testClient(t, &fakeExecutor{})

	_, err := client.DownloadVideo(context.Background(), "https://www.youtube.com/watch?v=abc", t.TempDir(), "talk")
	if err == nil {
		t.Fatal("DownloadVideo should fail when no output file appears")
	}
}

func TestDownloadSkipsPartialFiles(t *testing.T) {
	destDir := t.TempDir()
	exec := &fakeExecutor{
		runFn: func(_ context.Context, _ string, _ []string, _ func(string)) error {
			if err := os.WriteFile(filepath.Join(destDir, "talk_video.mp4.part"), []byte("partial"), 0o644); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(destDir, "talk_video.mp4"), []byte("full"), 0o644)
		},
	}
	client := testClient(t, exec)

	path, err := client.DownloadVideo(context.Background(), "https://www.youtube.com/watch?v=abc", destDir, "talk")
	if err != nil {
		t.Fatalf("DownloadVideo failed: %v", err)
	}
	if filepath.Base(path) != "talk_video.mp4" {
		t.Errorf("path = %q, should skip .part files", path)
	}
}

func TestEntryStem(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"title and id", Entry{ID: "abc123", Title: "Opening Keynote"}, "Opening Keynote [abc123]"},
		{"title only", Entry{Title: "Opening Keynote"}, "Opening Keynote"},
		{"id only", Entry{ID: "abc123"}, "abc123"},
		{"empty", Entry{}, ""},
		{"sanitized slashes", Entry{ID: "abc123", Title: "AC/DC: Live"}, "AC-DC- Live [abc123]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EntryStem(tt.entry); got != tt.want {
				t.Errorf("EntryStem(%+v) = %q, want %q", tt.entry, got, tt.want)
			}
		})
	}
}
