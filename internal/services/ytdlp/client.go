package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/momentumsubash/ytd/internal/config"
)

// Entry is one item from a flat playlist listing.
type Entry struct {
	ID      string
	Title   string
	URL     string
	Private bool
}

// Playlist is the metadata listing for one playlist or channel.
type Playlist struct {
	ID      string
	Title   string
	Entries []Entry
}

// Extractor defines the behaviour required by the download stage.
type Extractor interface {
	Playlist(ctx context.Context, url string) (Playlist, error)
	DownloadVideo(ctx context.Context, url, destDir, stem string) (string, error)
	DownloadAudio(ctx context.Context, url, destDir, stem string) (string, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	videoFormat     string
	audioFormat     string
	cookiesFile     string
	rateLimit       string
	proxy           string
	downloadTimeout time.Duration
	metadataTimeout time.Duration
	exec            Executor
}

// New constructs a yt-dlp client from the extractor configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	binary := strings.TrimSpace(cfg.Extractor.Binary)
	if binary == "" {
		return nil, errors.New("extractor binary required")
	}
	client := &Client{
		binary:          binary,
		videoFormat:     strings.TrimSpace(cfg.Extractor.VideoFormat),
		audioFormat:     strings.TrimSpace(cfg.Extractor.AudioFormat),
		cookiesFile:     strings.TrimSpace(cfg.Extractor.CookiesFile),
		rateLimit:       strings.TrimSpace(cfg.Extractor.RateLimit),
		proxy:           strings.TrimSpace(cfg.Extractor.Proxy),
		downloadTimeout: cfg.ExtractorTimeout(),
		metadataTimeout: cfg.MetadataTimeout(),
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type flatCollection struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Entries []flatEntry `json:"entries"`
}

type flatEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Playlist fetches the flat listing for a playlist URL without downloading
// any media.
func (c *Client) Playlist(ctx context.Context, url string) (Playlist, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Playlist{}, errors.New("playlist URL required")
	}

	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	args = c.appendCommonArgs(args)
	args = append(args, url)

	listCtx := ctx
	if c.metadataTimeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, c.metadataTimeout)
		defer cancel()
	}

	raw, err := c.exec.Output(listCtx, c.binary, args)
	if err != nil {
		return Playlist{}, classifyFailure("metadata", "list playlist", err.Error(), err)
	}
	if len(raw) == 0 {
		return Playlist{}, errors.New("yt-dlp returned empty playlist output")
	}

	var coll flatCollection
	if err := json.Unmarshal(raw, &coll); err != nil {
		return Playlist{}, fmt.Errorf("parse playlist JSON: %w", err)
	}

	listing := Playlist{
		ID:      strings.TrimSpace(coll.ID),
		Title:   strings.TrimSpace(coll.Title),
		Entries: make([]Entry, 0, len(coll.Entries)),
	}
	for _, e := range coll.Entries {
		id := strings.TrimSpace(e.ID)
		title := strings.TrimSpace(e.Title)
		listing.Entries = append(listing.Entries, Entry{
			ID:      id,
			Title:   title,
			URL:     resolveEntryURL(id, strings.TrimSpace(e.URL)),
			Private: isPrivateEntryTitle(title),
		})
	}
	return listing, nil
}

// DownloadVideo fetches the video stream for one entry into destDir as
// <stem>_video.<ext> and returns the produced file path.
func (c *Client) DownloadVideo(ctx context.Context, url, destDir, stem string) (string, error) {
	return c.download(ctx, url, destDir, stem, RoleSuffixVideo, c.videoFormat)
}

// DownloadAudio fetches the audio stream for one entry into destDir as
// <stem>_audio.<ext> and returns the produced file path.
func (c *Client) DownloadAudio(ctx context.Context, url, destDir, stem string) (string, error) {
	return c.download(ctx, url, destDir, stem, RoleSuffixAudio, c.audioFormat)
}

// Role suffixes appended to output filenames so the pairing step can rejoin
// the two streams of one entry.
const (
	RoleSuffixVideo = "_video"
	RoleSuffixAudio = "_audio"
)

func (c *Client) download(ctx context.Context, url, destDir, stem, roleSuffix, format string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", errors.New("entry URL required")
	}
	destDir = strings.TrimSpace(destDir)
	if destDir == "" {
		return "", errors.New("destination directory required")
	}
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return "", errors.New("output stem required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	operation := strings.TrimPrefix(roleSuffix, "_")
	args := []string{"--no-playlist", "--newline", "--no-warnings"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, "-P", destDir, "-o", stem+roleSuffix+".%(ext)s")
	args = c.appendCommonArgs(args)
	args = append(args, url)

	dlCtx := ctx
	if c.downloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()
	}

	var tail outputTail
	if err := c.exec.Run(dlCtx, c.binary, args, tail.add); err != nil {
		return "", classifyFailure("download", operation, tail.text()+"\n"+err.Error(), err)
	}

	path, err := findStreamFile(destDir, stem+roleSuffix+".")
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no %s file for %s", operation, stem)
	}
	return path, nil
}

func (c *Client) appendCommonArgs(args []string) []string {
	if c.cookiesFile != "" {
		args = append(args, "--cookies", c.cookiesFile)
	}
	if c.rateLimit != "" {
		args = append(args, "--limit-rate", c.rateLimit)
	}
	if c.proxy != "" {
		args = append(args, "--proxy", c.proxy)
	}
	return args
}

// EntryStem derives the stable output stem for one playlist entry. The video
// ID keeps stems unique when two entries share a title.
func EntryStem(e Entry) string {
	title := sanitizeFileName(e.Title)
	id := strings.TrimSpace(e.ID)
	switch {
	case title == "" && id == "":
		return ""
	case title == "":
		return id
	case id == "":
		return title
	default:
		return title + " [" + id + "]"
	}
}

func resolveEntryURL(id, maybeURL string) string {
	if maybeURL != "" {
		if strings.HasPrefix(maybeURL, "http://") || strings.HasPrefix(maybeURL, "https://") {
			return maybeURL
		}
		if strings.HasPrefix(maybeURL, "watch?") || strings.HasPrefix(maybeURL, "/watch?") {
			return "https://www.youtube.com/" + strings.TrimPrefix(maybeURL, "/")
		}
	}
	if id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return maybeURL
}

func isPrivateEntryTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t == "[Private video]" || t == "[Deleted video]"
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return strings.TrimSpace(replacer.Replace(name))
}

// findStreamFile returns the newest file in dir whose name starts with
// prefix. yt-dlp picks the container extension, so the exact name is not
// known up front.
func findStreamFile(dir, prefix string) (string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("inspect download outputs: %w", err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		name := item.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = filepath.Join(dir, name)
			bestTime = info.ModTime()
		}
	}
	return best, nil
}

type outputTail struct {
	lines []string
}

const tailLimit = 40

func (t *outputTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLimit {
		t.lines = t.lines[len(t.lines)-tailLimit:]
	}
}

func (t *outputTail) text() string {
	return strings.Join(t.lines, "\n")
}
