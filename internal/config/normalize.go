package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()

	var err error
	if c.Paths.Database, err = ExpandPath(strings.TrimSpace(c.Paths.Database)); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	if c.Paths.MusicDir, err = ExpandPath(strings.TrimSpace(c.Paths.MusicDir)); err != nil {
		return fmt.Errorf("paths.music_dir: %w", err)
	}
	if c.Media.CookiesPath, err = ExpandPath(strings.TrimSpace(c.Media.CookiesPath)); err != nil {
		return fmt.Errorf("media.cookies_path: %w", err)
	}

	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.CORSOrigins = trimAll(c.Server.CORSOrigins)

	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	c.YouTube.AccessToken = strings.TrimSpace(c.YouTube.AccessToken)
	c.YouTube.BaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.BaseURL), "/")
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
	c.YouTube.DurationBucket = strings.ToLower(strings.TrimSpace(c.YouTube.DurationBucket))

	c.Media.Decoder = strings.ToLower(strings.TrimSpace(c.Media.Decoder))
	if c.Media.Decoder == "" {
		c.Media.Decoder = defaultDecoder
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// applyEnv lets the environment override file values.
func (c *Config) applyEnv() {
	override := func(key string, dst *string) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*dst = value
		}
	}
	override("YOUTUBE_API_KEY", &c.YouTube.APIKey)
	override("YOUTUBE_ACCESS_TOKEN", &c.YouTube.AccessToken)
	override("YOUTUBE_COOKIES_PATH", &c.Media.CookiesPath)
	override("CRATEDIGGER_DB", &c.Paths.Database)
	override("CRATEDIGGER_ADDR", &c.Server.Bind)
	override("CRATEDIGGER_LOG_LEVEL", &c.Logging.Level)
	if origins, ok := os.LookupEnv("CORS_ORIGINS"); ok && strings.TrimSpace(origins) != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
