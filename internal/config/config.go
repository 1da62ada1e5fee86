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

	"github.com/ewilliams-labs/cratedigger/internal/retry"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file locations.
type Paths struct {
	Database string `toml:"database"`
	MusicDir string `toml:"music_dir"`
}

// Server contains HTTP settings.
type Server struct {
	Bind        string   `toml:"bind"`
	CORSOrigins []string `toml:"cors_origins"`
}

// YouTube contains video search API settings.
type YouTube struct {
	APIKey         string  `toml:"api_key"`
	AccessToken    string  `toml:"access_token"`
	BaseURL        string  `toml:"base_url"`
	MaxResults     int     `toml:"max_results"`
	DurationBucket string  `toml:"duration_bucket"`
	MinScore       float64 `toml:"min_score"`
}

// Media contains the external tools used to fetch and decode samples.
type Media struct {
	YtDlpPath            string `toml:"ytdlp_path"`
	FFmpegPath           string `toml:"ffmpeg_path"`
	CookiesPath          string `toml:"cookies_path"`
	Decoder              string `toml:"decoder"`
	FetchTimeoutSeconds  int    `toml:"fetch_timeout_seconds"`
	DecodeTimeoutSeconds int    `toml:"decode_timeout_seconds"`
}

// Analysis contains sampling and pacing settings.
type Analysis struct {
	WindowOffset  float64 `toml:"window_offset"`
	WindowSeconds float64 `toml:"window_seconds"`
	TrackDelayMS  int     `toml:"track_delay_ms"`
}

// Queue contains job queue settings.
type Queue struct {
	Size int `toml:"size"`
}

// Retry contains backoff settings for network calls and for persistence.
type Retry struct {
	Attempts           int `toml:"attempts"`
	BaseDelayMS        int `toml:"base_delay_ms"`
	MaxDelayMS         int `toml:"max_delay_ms"`
	PersistAttempts    int `toml:"persist_attempts"`
	PersistBaseDelayMS int `toml:"persist_base_delay_ms"`
	PersistMaxDelayMS  int `toml:"persist_max_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cratedigger.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Server   Server   `toml:"server"`
	YouTube  YouTube  `toml:"youtube"`
	Media    Media    `toml:"media"`
	Analysis Analysis `toml:"analysis"`
	Queue    Queue    `toml:"queue"`
	Retry    Retry    `toml:"retry"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load parses and validates a configuration file. A missing file yields the
// defaults. The returned path is the file that was (or would be) read.
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
		decoder.DisallowUnknownFields()
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
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// CreateSample writes a sample configuration file to path.
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

// EnsureDirectories creates the database directory.
func (c *Config) EnsureDirectories() error {
	if c.Paths.Database == "" || c.Paths.Database == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Paths.Database), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

// NetworkPolicy is the backoff for search and sample fetches.
func (c *Config) NetworkPolicy() retry.Policy {
	return retry.Policy{
		Attempts:  c.Retry.Attempts,
		BaseDelay: millis(c.Retry.BaseDelayMS),
		MaxDelay:  millis(c.Retry.MaxDelayMS),
	}
}

// PersistPolicy is the backoff for job and result writes.
func (c *Config) PersistPolicy() retry.Policy {
	return retry.Policy{
		Attempts:  c.Retry.PersistAttempts,
		BaseDelay: millis(c.Retry.PersistBaseDelayMS),
		MaxDelay:  millis(c.Retry.PersistMaxDelayMS),
	}
}

// TrackDelay is the pause between tracks of a job.
func (c *Config) TrackDelay() time.Duration {
	return millis(c.Analysis.TrackDelayMS)
}

// FetchTimeout bounds one sample download.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Media.FetchTimeoutSeconds) * time.Second
}

// DecodeTimeout bounds one ffmpeg decode.
func (c *Config) DecodeTimeout() time.Duration {
	return time.Duration(c.Media.DecodeTimeoutSeconds) * time.Second
}

// HasYouTubeCredentials reports whether search can authenticate.
func (c *Config) HasYouTubeCredentials() bool {
	return c.YouTube.APIKey != "" || c.YouTube.AccessToken != ""
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ExpandPath resolves a leading ~ and makes the path absolute. ":memory:"
// and the empty string pass through.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" || pathValue == ":memory:" {
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
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
