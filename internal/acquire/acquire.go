// Package acquire turns a resolved source into a decoded mono sample window.
package acquire

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/retry"
)

const (
	// DefaultWindowOffset skips intros: the window starts this far into the track.
	DefaultWindowOffset = 0.2
	// DefaultWindowSeconds is the analysed span.
	DefaultWindowSeconds = 30.0
)

// Config controls the sample window and fetch retries.
type Config struct {
	WindowOffset  float64
	WindowSeconds float64
	Retry         retry.Policy
}

// Acquirer fetches and decodes sample windows.
type Acquirer struct {
	fetcher ports.SampleFetcher
	decoder ports.PCMDecoder
	cfg     Config
	logger  *slog.Logger
}

// New constructs an Acquirer.
func New(fetcher ports.SampleFetcher, decoder ports.PCMDecoder, cfg Config, logger *slog.Logger) *Acquirer {
	if cfg.WindowOffset <= 0 || cfg.WindowOffset >= 1 {
		cfg.WindowOffset = DefaultWindowOffset
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = DefaultWindowSeconds
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "acquire")
	cfg.Retry.Logger = logger
	return &Acquirer{fetcher: fetcher, decoder: decoder, cfg: cfg, logger: logger}
}

// Window returns the sample request for a source: 20% in, 30 seconds long.
// Unknown durations start at zero.
func (a *Acquirer) Window(src domain.ResolvedSource) ports.SampleRequest {
	start := 0.0
	if src.DurationSeconds > 0 {
		start = math.Floor(src.DurationSeconds * a.cfg.WindowOffset)
	}
	return ports.SampleRequest{
		SourceID:        src.SourceID,
		StartSeconds:    start,
		DurationSeconds: a.cfg.WindowSeconds,
	}
}

// Acquire fetches the window with retry, then decodes it once. Decode
// failures are not retried.
func (a *Acquirer) Acquire(ctx context.Context, src domain.ResolvedSource) (domain.AudioSample, error) {
	req := a.Window(src)
	a.logger.Info("acquiring sample", "source_id", req.SourceID, "start", req.StartSeconds, "duration", req.DurationSeconds)

	res := retry.Do(ctx, a.cfg.Retry.Named("sample fetch"), func(ctx context.Context, _ int) ([]byte, error) {
		return a.fetcher.FetchSample(ctx, req)
	})
	compressed, err := res.Unwrap()
	if err != nil {
		return domain.AudioSample{}, fmt.Errorf("acquire: %w", err)
	}

	pcm, err := a.decoder.Decode(ctx, compressed)
	if err != nil {
		return domain.AudioSample{}, fmt.Errorf("acquire: %w: %w", domain.ErrDecode, err)
	}

	sample := FromPCM16(pcm, domain.SampleRate)
	if len(sample.Samples) == 0 {
		return domain.AudioSample{}, fmt.Errorf("acquire: %w: empty signal", domain.ErrDecode)
	}
	a.logger.Debug("sample decoded", "source_id", req.SourceID, "samples", len(sample.Samples), "attempts", res.Attempts)
	return sample, nil
}

// FromPCM16 converts little-endian signed 16-bit PCM to amplitudes in [-1, 1].
// A trailing odd byte is ignored.
func FromPCM16(pcm []byte, sampleRate int) domain.AudioSample {
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return domain.AudioSample{Samples: samples, SampleRate: sampleRate}
}

// ToPCM16 is the inverse of FromPCM16, clipping to the 16-bit range.
func ToPCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768.0)
		v = math.Max(-32768, math.Min(32767, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
