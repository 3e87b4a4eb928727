package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.MergedDir) == "" {
		return errors.New("paths.merged_dir must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint must be set when storage.enabled is true")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.enabled is true")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ytd/config.toml"
		}
		return fmt.Errorf("storage credentials are required. Set YTD_ACCESS_KEY/YTD_SECRET_KEY env vars or edit %s (create with 'ytd config init')", defaultPath)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxAttempts < 1 {
		return errors.New("pipeline.max_attempts must be at least 1")
	}
	switch c.Pipeline.SourceCleanup {
	case SourceCleanupMove, SourceCleanupDelete, SourceCleanupKeep:
	default:
		return fmt.Errorf("pipeline.source_cleanup must be one of %q, %q, %q", SourceCleanupMove, SourceCleanupDelete, SourceCleanupKeep)
	}
	return nil
}

func (c *Config) validateMatching() error {
	if len(c.Matching.VideoExtensions) == 0 {
		return errors.New("matching.video_extensions must not be empty")
	}
	if len(c.Matching.AudioExtensions) == 0 {
		return errors.New("matching.audio_extensions must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
