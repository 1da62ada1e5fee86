// Package audiotest synthesises deterministic signals for analysis tests.
package audiotest

import (
	"math"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// Sine returns a pure tone.
func Sine(freq, seconds, amplitude float64) domain.AudioSample {
	n := int(seconds * domain.SampleRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/domain.SampleRate)
	}
	return domain.AudioSample{Samples: out, SampleRate: domain.SampleRate}
}

// Silence returns a zero signal.
func Silence(seconds float64) domain.AudioSample {
	return domain.AudioSample{Samples: make([]float64, int(seconds*domain.SampleRate)), SampleRate: domain.SampleRate}
}

// ClickTrack places a 20ms decaying 1kHz burst on every beat.
func ClickTrack(bpm, seconds float64) domain.AudioSample {
	n := int(seconds * domain.SampleRate)
	out := make([]float64, n)
	period := 60 / bpm * domain.SampleRate
	clickLen := int(0.02 * domain.SampleRate)
	for beat := 0.0; ; beat++ {
		start := int(math.Round(beat * period))
		if start >= n {
			break
		}
		for j := 0; j < clickLen && start+j < n; j++ {
			t := float64(j) / domain.SampleRate
			out[start+j] = 0.9 * math.Exp(-t*200) * math.Sin(2*math.Pi*1000*t)
		}
	}
	return domain.AudioSample{Samples: out, SampleRate: domain.SampleRate}
}

// Note is one step of a Melody.
type Note struct {
	Freq    float64
	Seconds float64
}

// Melody concatenates sine tones.
func Melody(notes []Note, amplitude float64) domain.AudioSample {
	var out []float64
	for _, note := range notes {
		out = append(out, Sine(note.Freq, note.Seconds, amplitude).Samples...)
	}
	return domain.AudioSample{Samples: out, SampleRate: domain.SampleRate}
}

// Equal-tempered frequencies around middle C.
const (
	C4 = 261.63
	D4 = 293.66
	E4 = 329.63
	F4 = 349.23
	G4 = 392.00
	A4 = 440.00
	B4 = 493.88
)
