package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir   string `toml:"staging_dir"`
	MergedDir    string `toml:"merged_dir"`
	ProcessedDir string `toml:"processed_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Extractor contains configuration for the yt-dlp download tool.
type Extractor struct {
	Binary                 string `toml:"binary"`
	VideoFormat            string `toml:"video_format"`
	AudioFormat            string `toml:"audio_format"`
	CookiesFile            string `toml:"cookies_file"`
	RateLimit              string `toml:"rate_limit"`
	Proxy                  string `toml:"proxy"`
	TimeoutMinutes         int    `toml:"timeout_minutes"`
	MetadataTimeoutSeconds int    `toml:"metadata_timeout_seconds"`
}

// Encoder contains configuration for the ffmpeg merge step.
type Encoder struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	StreamCopy     bool   `toml:"stream_copy"`
	TimeoutMinutes int    `toml:"timeout_minutes"`
}

// Storage contains configuration for the S3-compatible upload target.
type Storage struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	UseSSL         bool   `toml:"use_ssl"`
	TimeoutMinutes int    `toml:"timeout_minutes"`
}

// SourceCleanup values control what happens to source files after a
// successful merge.
const (
	SourceCleanupMove   = "move"
	SourceCleanupDelete = "delete"
	SourceCleanupKeep   = "keep"
)

// Pipeline contains run sequencing and pacing configuration.
type Pipeline struct {
	Playlists            []string `toml:"playlists"`
	StartIndex           int      `toml:"start_index"`
	MaxAttempts          int      `toml:"max_attempts"`
	RetryBackoffSeconds  int      `toml:"retry_backoff_seconds"`
	ItemDelaySeconds     int      `toml:"item_delay_seconds"`
	StageDelaySeconds    int      `toml:"stage_delay_seconds"`
	PlaylistDelaySeconds int      `toml:"playlist_delay_seconds"`
	SourceCleanup        string   `toml:"source_cleanup"`
}

// Matching contains configuration for the file pair matcher.
type Matching struct {
	VideoExtensions []string `toml:"video_extensions"`
	AudioExtensions []string `toml:"audio_extensions"`
	VideoSuffixes   []string `toml:"video_suffixes"`
	AudioSuffixes   []string `toml:"audio_suffixes"`
	Fuzzy           bool     `toml:"fuzzy"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ytd.
//
// Configuration sections by subsystem:
//   - Paths: staging, merged, processed, state, and log directories
//   - Extractor: yt-dlp binary, format selectors, cookies, rate limiting
//   - Encoder: ffmpeg/ffprobe binaries and mux behaviour
//   - Storage: S3-compatible endpoint and bucket for uploads
//   - Pipeline: playlists, retry policy, politeness delays, source cleanup
//   - Matching: extension sets and role suffixes for the pair matcher
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Extractor Extractor `toml:"extractor"`
	Encoder   Encoder   `toml:"encoder"`
	Storage   Storage   `toml:"storage"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Matching  Matching  `toml:"matching"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ytd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/ytd/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.MergedDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Pipeline.SourceCleanup == SourceCleanupMove {
		if err := os.MkdirAll(c.Paths.ProcessedDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.ProcessedDir, err)
		}
	}
	return nil
}

// ExtractorBinary returns the yt-dlp executable name.
func (c *Config) ExtractorBinary() string {
	if strings.TrimSpace(c.Extractor.Binary) == "" {
		return defaultExtractorBinary
	}
	return c.Extractor.Binary
}

// FFmpegBinary returns the ffmpeg executable name used for muxing.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Encoder.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Encoder.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Encoder.FFprobeBinary
}

// ExtractorTimeout returns the per-download attempt timeout.
func (c *Config) ExtractorTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutMinutes) * time.Minute
}

// MetadataTimeout returns the playlist metadata query timeout.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Extractor.MetadataTimeoutSeconds) * time.Second
}

// EncoderTimeout returns the per-mux attempt timeout.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutMinutes) * time.Minute
}

// StorageTimeout returns the per-upload attempt timeout.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.TimeoutMinutes) * time.Minute
}

// ItemDelay returns the politeness pause between consecutive units.
func (c *Config) ItemDelay() time.Duration {
	return time.Duration(c.Pipeline.ItemDelaySeconds) * time.Second
}

// StageDelay returns the pause between pipeline stages.
func (c *Config) StageDelay() time.Duration {
	return time.Duration(c.Pipeline.StageDelaySeconds) * time.Second
}

// PlaylistDelay returns the pause between playlists.
func (c *Config) PlaylistDelay() time.Duration {
	return time.Duration(c.Pipeline.PlaylistDelaySeconds) * time.Second
}

// RetryBackoff returns the base backoff between retry attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Pipeline.RetryBackoffSeconds) * time.Second
}

// ProgressStatePath returns the location of the per-stem progress file.
func (c *Config) ProgressStatePath() string {
	return filepath.Join(c.Paths.StateDir, "progress.json")
}

// PlaylistStatePath returns the location of the playlist state file.
func (c *Config) PlaylistStatePath() string {
	return filepath.Join(c.Paths.StateDir, "playlists.json")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
