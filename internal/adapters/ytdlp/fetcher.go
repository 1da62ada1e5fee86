// Package ytdlp streams a time window of a video's best audio track through
// the yt-dlp command line tool.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/ewilliams-labs/cratedigger/internal/adapters/binary"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

const (
	name           = "yt-dlp"
	defaultTimeout = 2 * time.Minute
	watchURL       = "https://www.youtube.com/watch?v="
)

// Config locates the binary and optional authentication cookies.
type Config struct {
	Path        string
	CookiesPath string
	Timeout     time.Duration
}

// Fetcher implements ports.SampleFetcher.
type Fetcher struct {
	bin     string
	cookies string
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.SampleFetcher = (*Fetcher)(nil)

// New resolves the yt-dlp binary.
func New(cfg Config, logger *slog.Logger) (*Fetcher, error) {
	bin, err := binary.Resolve(cfg.Path, name)
	if err != nil {
		return nil, fmt.Errorf("ytdlp: %w (install with: pip install yt-dlp)", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{bin: bin, cookies: cfg.CookiesPath, timeout: cfg.Timeout, logger: logger.With("component", "ytdlp")}, nil
}

// Version reports the installed yt-dlp version.
func (f *Fetcher) Version(ctx context.Context) (string, error) {
	return binary.Version(ctx, f.bin, "--version")
}

// FetchSample downloads only the requested section of the best audio stream.
func (f *Fetcher) FetchSample(ctx context.Context, req ports.SampleRequest) ([]byte, error) {
	if req.SourceID == "" {
		return nil, errors.New("ytdlp: empty source id")
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := Args(req, f.cookies)
	f.logger.Debug("fetching sample", "source_id", req.SourceID, "start", req.StartSeconds, "duration", req.DurationSeconds)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ytdlp: %w: after %v", binary.ErrTimeout, f.timeout)
		}
		return nil, fmt.Errorf("ytdlp: %w: %s: %w", binary.ErrCommandFailure, stderr.String(), err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ytdlp: %w: no audio returned for %s", binary.ErrCommandFailure, req.SourceID)
	}
	return stdout.Bytes(), nil
}

// Args builds the yt-dlp argument list for a sample request.
func Args(req ports.SampleRequest, cookiesPath string) []string {
	args := make([]string, 0, 14)
	if cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	args = append(args,
		"-f", "bestaudio",
		"--no-playlist",
		"-o", "-",
		"--quiet",
		"--no-warnings",
	)
	if req.DurationSeconds > 0 {
		end := req.StartSeconds + req.DurationSeconds
		args = append(args, "--download-sections", "*"+seconds(req.StartSeconds)+"-"+seconds(end))
	}
	return append(args, watchURL+req.SourceID)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
