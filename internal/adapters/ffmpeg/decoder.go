// Package ffmpeg decodes compressed audio to mono 16-bit PCM through the
// ffmpeg command line tool.
package ffmpeg

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
	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

const (
	name           = "ffmpeg"
	codec          = "pcm_s16le"
	format         = "s16le"
	defaultTimeout = time.Minute
)

// Decoder implements ports.PCMDecoder.
type Decoder struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.PCMDecoder = (*Decoder)(nil)

// New resolves the ffmpeg binary. An empty path searches PATH.
func New(path string, timeout time.Duration, logger *slog.Logger) (*Decoder, error) {
	bin, err := binary.Resolve(path, name)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{bin: bin, timeout: timeout, logger: logger.With("component", "ffmpeg")}, nil
}

// Version reports the installed ffmpeg version line.
func (d *Decoder) Version(ctx context.Context) (string, error) {
	return binary.Version(ctx, d.bin, "-version")
}

// Decode pipes compressed through ffmpeg and returns raw PCM.
func (d *Decoder) Decode(ctx context.Context, compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, fmt.Errorf("ffmpeg: %w: empty input", domain.ErrDecode)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.logger.Debug("decoding", "bytes", len(compressed), "stage", "start")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.bin, Args()...)
	cmd.Stdin = bytes.NewReader(compressed)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ffmpeg: %w: after %v", binary.ErrTimeout, d.timeout)
		}
		return nil, fmt.Errorf("ffmpeg: %w: %w: %s: %w", domain.ErrDecode, binary.ErrCommandFailure, stderr.String(), err)
	}
	if stdout.Len() < 2 {
		return nil, fmt.Errorf("ffmpeg: %w: no samples produced", domain.ErrDecode)
	}

	d.logger.Debug("decoding", "pcm_bytes", stdout.Len(), "stage", "done")
	return stdout.Bytes(), nil
}

// Args is the ffmpeg argument list: stdin to mono s16le at the domain rate.
func Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", format,
		"-acodec", codec,
		"-ar", strconv.Itoa(domain.SampleRate),
		"-ac", "1",
		"-",
	}
}
