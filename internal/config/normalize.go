package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeExtractor(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeStorage()
	c.normalizePipeline()
	c.normalizeMatching()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.MergedDir, err = expandPath(c.Paths.MergedDir); err != nil {
		return fmt.Errorf("paths.merged_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProcessedDir) == "" {
		c.Paths.ProcessedDir = defaultProcessedDir
	}
	if c.Paths.ProcessedDir, err = expandPath(c.Paths.ProcessedDir); err != nil {
		return fmt.Errorf("paths.processed_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtractor() error {
	c.Extractor.Binary = strings.TrimSpace(c.Extractor.Binary)
	if c.Extractor.Binary == "" {
		c.Extractor.Binary = defaultExtractorBinary
	}
	c.Extractor.VideoFormat = strings.TrimSpace(c.Extractor.VideoFormat)
	if c.Extractor.VideoFormat == "" {
		c.Extractor.VideoFormat = defaultVideoFormat
	}
	c.Extractor.AudioFormat = strings.TrimSpace(c.Extractor.AudioFormat)
	if c.Extractor.AudioFormat == "" {
		c.Extractor.AudioFormat = defaultAudioFormat
	}
	if strings.TrimSpace(c.Extractor.CookiesFile) != "" {
		expanded, err := expandPath(c.Extractor.CookiesFile)
		if err != nil {
			return fmt.Errorf("extractor.cookies_file: %w", err)
		}
		c.Extractor.CookiesFile = expanded
	} else {
		c.Extractor.CookiesFile = ""
	}
	c.Extractor.RateLimit = strings.TrimSpace(c.Extractor.RateLimit)
	c.Extractor.Proxy = strings.TrimSpace(c.Extractor.Proxy)
	if c.Extractor.TimeoutMinutes <= 0 {
		c.Extractor.TimeoutMinutes = defaultExtractorTimeoutMins
	}
	if c.Extractor.MetadataTimeoutSeconds <= 0 {
		c.Extractor.MetadataTimeoutSeconds = defaultMetadataTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Encoder.TimeoutMinutes <= 0 {
		c.Encoder.TimeoutMinutes = defaultEncoderTimeoutMin
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("YTD_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("YTD_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	if c.Storage.TimeoutMinutes <= 0 {
		c.Storage.TimeoutMinutes = defaultStorageTimeoutMin
	}
}

func (c *Config) normalizePipeline() {
	cleaned := make([]string, 0, len(c.Pipeline.Playlists))
	for _, p := range c.Pipeline.Playlists {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	c.Pipeline.Playlists = cleaned
	if c.Pipeline.StartIndex < 0 {
		c.Pipeline.StartIndex = 0
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = defaultMaxAttempts
	}
	if c.Pipeline.RetryBackoffSeconds < 0 {
		c.Pipeline.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Pipeline.ItemDelaySeconds < 0 {
		c.Pipeline.ItemDelaySeconds = 0
	}
	if c.Pipeline.StageDelaySeconds < 0 {
		c.Pipeline.StageDelaySeconds = 0
	}
	if c.Pipeline.PlaylistDelaySeconds < 0 {
		c.Pipeline.PlaylistDelaySeconds = 0
	}
	c.Pipeline.SourceCleanup = strings.ToLower(strings.TrimSpace(c.Pipeline.SourceCleanup))
	if c.Pipeline.SourceCleanup == "" {
		c.Pipeline.SourceCleanup = SourceCleanupMove
	}
}

func (c *Config) normalizeMatching() {
	c.Matching.VideoExtensions = normalizeExtensions(c.Matching.VideoExtensions, defaultVideoExtensions())
	c.Matching.AudioExtensions = normalizeExtensions(c.Matching.AudioExtensions, defaultAudioExtensions())
	c.Matching.VideoSuffixes = normalizeSuffixes(c.Matching.VideoSuffixes, defaultVideoSuffixes())
	c.Matching.AudioSuffixes = normalizeSuffixes(c.Matching.AudioSuffixes, defaultAudioSuffixes())
}

func normalizeExtensions(values []string, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func normalizeSuffixes(values []string, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
