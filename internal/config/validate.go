package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.Database == "" {
		return errors.New("paths.database must be set")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if c.YouTube.MaxResults < 1 || c.YouTube.MaxResults > 50 {
		return errors.New("youtube.max_results must be between 1 and 50")
	}
	switch c.YouTube.DurationBucket {
	case "any", "short", "medium", "long":
	default:
		return fmt.Errorf("youtube.duration_bucket %q must be one of any, short, medium, long", c.YouTube.DurationBucket)
	}
	if c.YouTube.MinScore < 0 || c.YouTube.MinScore >= 1 {
		return errors.New("youtube.min_score must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateMedia() error {
	switch c.Media.Decoder {
	case DecoderFFmpeg, DecoderMP3:
	default:
		return fmt.Errorf("media.decoder %q must be %q or %q", c.Media.Decoder, DecoderFFmpeg, DecoderMP3)
	}
	if c.Media.FetchTimeoutSeconds <= 0 || c.Media.DecodeTimeoutSeconds <= 0 {
		return errors.New("media timeouts must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.WindowOffset < 0 || c.Analysis.WindowOffset >= 1 {
		return errors.New("analysis.window_offset must be in [0, 1)")
	}
	if c.Analysis.WindowSeconds <= 0 {
		return errors.New("analysis.window_seconds must be positive")
	}
	if c.Analysis.TrackDelayMS < 0 {
		return errors.New("analysis.track_delay_ms must not be negative")
	}
	if c.Queue.Size < 1 {
		return errors.New("queue.size must be at least 1")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.Attempts < 1 || c.Retry.PersistAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}
	if c.Retry.BaseDelayMS < 0 || c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be >= retry.base_delay_ms >= 0")
	}
	if c.Retry.PersistBaseDelayMS < 0 || c.Retry.PersistMaxDelayMS < c.Retry.PersistBaseDelayMS {
		return errors.New("retry.persist_max_delay_ms must be >= retry.persist_base_delay_ms >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
