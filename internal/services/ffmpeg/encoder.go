package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/media/ffprobe"
	"github.com/momentumsubash/ytd/internal/services"
)

// MergeRequest names the two input streams and the target container path.
type MergeRequest struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
}

// MergeResult reports the produced container and its probed properties.
// DurationSeconds and the stream counts stay zero when ffprobe is not
// available.
type MergeResult struct {
	OutputPath      string
	SizeBytes       int64
	DurationSeconds float64
	VideoStreams    int
	AudioStreams    int
}

// Encoder defines the behaviour required by the merge stage.
type Encoder interface {
	Merge(ctx context.Context, req MergeRequest) (MergeResult, error)
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
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

// Client wraps ffmpeg CLI interactions for stream muxing.
type Client struct {
	ffmpegBinary  string
	ffprobeBinary string
	streamCopy    bool
	timeout       time.Duration
	exec          Executor
}

// New constructs an ffmpeg client from the encoder configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	client := &Client{
		ffmpegBinary:  cfg.FFmpegBinary(),
		ffprobeBinary: cfg.FFprobeBinary(),
		streamCopy:    cfg.Encoder.StreamCopy,
		timeout:       cfg.EncoderTimeout(),
		exec:          commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Merge muxes the first video stream of req.VideoPath and the first audio
// stream of req.AudioPath into req.OutputPath, then verifies the produced
// container.
func (c *Client) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	videoPath := strings.TrimSpace(req.VideoPath)
	audioPath := strings.TrimSpace(req.AudioPath)
	outputPath := strings.TrimSpace(req.OutputPath)
	if videoPath == "" || audioPath == "" || outputPath == "" {
		return MergeResult{}, errors.New("merge requires video, audio, and output paths")
	}
	for _, input := range []string{videoPath, audioPath} {
		if _, err := os.Stat(input); err != nil {
			return MergeResult{}, fmt.Errorf("merge input missing: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return MergeResult{}, fmt.Errorf("create output directory: %w", err)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", videoPath, "-i", audioPath, "-map", "0:v:0", "-map", "1:a:0"}
	if c.streamCopy {
		args = append(args, "-c", "copy")
	}
	if format := outputFormatForPath(outputPath); format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, outputPath)

	muxCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		muxCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.exec.Run(muxCtx, c.ffmpegBinary, args)
	if err != nil {
		_ = os.Remove(outputPath)
		if detail := strings.TrimSpace(string(output)); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return MergeResult{}, services.Wrap(services.ErrExternalTool, "merge", "mux streams", "ffmpeg mux failed", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(outputPath)
		return MergeResult{}, fmt.Errorf("ffmpeg produced no output file at %s", outputPath)
	}

	result := MergeResult{OutputPath: outputPath, SizeBytes: info.Size()}

	// ffprobe is optional; a failed probe leaves the duration unset instead
	// of failing an otherwise successful merge.
	probed, probeErr := probeMedia(ctx, c.ffprobeBinary, outputPath)
	if probeErr != nil {
		return result, nil
	}
	if probed.VideoStreamCount() == 0 || probed.AudioStreamCount() == 0 {
		_ = os.Remove(outputPath)
		streamErr := fmt.Errorf("video streams=%d audio streams=%d", probed.VideoStreamCount(), probed.AudioStreamCount())
		return MergeResult{}, services.Wrap(services.ErrExternalTool, "merge", "verify output", "merged file is missing a stream", streamErr)
	}
	result.DurationSeconds = probed.DurationSeconds()
	result.VideoStreams = probed.VideoStreamCount()
	result.AudioStreams = probed.AudioStreamCount()
	return result, nil
}

// Probe inspects a media file and returns its parsed ffprobe result.
func (c *Client) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return probeMedia(ctx, c.ffprobeBinary, path)
}

func outputFormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv", ".mk3d":
		return "matroska"
	case ".mp4", ".m4v":
		return "mp4"
	case ".mov":
		return "mov"
	case ".webm":
		return "webm"
	default:
		return ""
	}
}

var _ Encoder = (*Client)(nil)
