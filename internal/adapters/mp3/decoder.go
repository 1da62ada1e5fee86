// Package mp3 decodes MP3 data in-process, for sources that deliver MP3 and
// hosts without ffmpeg.
package mp3

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

// Decoder implements ports.PCMDecoder.
type Decoder struct{}

var _ ports.PCMDecoder = Decoder{}

// Decode returns mono 16-bit little-endian PCM at domain.SampleRate.
func (Decoder) Decode(ctx context.Context, compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, fmt.Errorf("mp3: %w: empty input", domain.ErrDecode)
	}
	dec, err := gomp3.NewDecoder(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w: %w", domain.ErrDecode, err)
	}

	// go-mp3 always yields interleaved 16-bit stereo
	stereo := make([]int16, 0, max(dec.Length()/2, 0))
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			stereo = append(stereo, int16(binary.LittleEndian.Uint16(buf[i:])))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("mp3: %w: %w", domain.ErrDecode, err)
		}
	}
	if len(stereo) < 2 {
		return nil, fmt.Errorf("mp3: %w: no samples", domain.ErrDecode)
	}

	mono := Resample(Downmix(stereo), dec.SampleRate(), domain.SampleRate)
	out := make([]byte, len(mono)*2)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

// Downmix averages interleaved stereo frames to mono.
func Downmix(stereo []int16) []int16 {
	mono := make([]int16, len(stereo)/2)
	for i := range mono {
		mono[i] = int16((int32(stereo[2*i]) + int32(stereo[2*i+1])) / 2)
	}
	return mono
}

// Resample converts between rates by linear interpolation.
func Resample(in []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}

// Duration reports the playing time of an MP3 stream in seconds. The reader
// must be seekable for the length to be known.
func Duration(r io.ReadSeeker) (float64, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("mp3: %w: %w", domain.ErrDecode, err)
	}
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("mp3: unknown length")
	}
	// four bytes per stereo 16-bit frame
	return float64(length) / 4 / float64(dec.SampleRate()), nil
}
