package domain

import (
	"fmt"
	"strings"
	"time"
)

// SampleRate is the fixed PCM rate every decoder must produce.
const SampleRate = 44100

// AudioSample is a decoded mono signal with amplitudes in [-1, 1]. Samples are
// held in memory only while features are extracted.
type AudioSample struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the signal.
func (s AudioSample) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// Mode is the tonality of a key.
type Mode string

const (
	ModeMajor Mode = "major"
	ModeMinor Mode = "minor"
)

// PitchClassNames maps pitch class 0..11 to note names, C first.
var PitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Key is a musical key. PitchClass is -1 when the key is unknown.
type Key struct {
	PitchClass int
	Mode       Mode
}

// UnknownKey is the fallback when key detection fails.
var UnknownKey = Key{PitchClass: -1}

// Known reports whether the key holds a detected pitch class.
func (k Key) Known() bool {
	return k.PitchClass >= 0 && k.PitchClass < 12 && (k.Mode == ModeMajor || k.Mode == ModeMinor)
}

func (k Key) String() string {
	if !k.Known() {
		return "Unknown"
	}
	return PitchClassNames[k.PitchClass] + " " + string(k.Mode)
}

// MarshalText encodes the key in its display form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts anything ParseKey accepts.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey parses the "D minor" form produced by String.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unknown") {
		return UnknownKey, nil
	}
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return UnknownKey, fmt.Errorf("domain: invalid key %q", s)
	}
	mode := Mode(strings.ToLower(parts[1]))
	if mode != ModeMajor && mode != ModeMinor {
		return UnknownKey, fmt.Errorf("domain: invalid mode in key %q", s)
	}
	for pc, name := range PitchClassNames {
		if strings.EqualFold(name, parts[0]) {
			return Key{PitchClass: pc, Mode: mode}, nil
		}
	}
	return UnknownKey, fmt.Errorf("domain: invalid pitch class in key %q", s)
}

// EnergyComponents are the raw sub-measurements behind the energy score.
type EnergyComponents struct {
	Loudness        float64 `json:"loudness"`        // RMS dB in [-60, 0]
	SpectralFlux    float64 `json:"spectralFlux"`    // dynamic range proxy in [0, 10]
	OnsetRate       float64 `json:"onsetRate"`       // zero crossings per 100 samples, per second
	PercussiveRatio float64 `json:"percussiveRatio"` // [0, 1]
}

// DefaultEnergyComponents is used when energy extraction fails.
var DefaultEnergyComponents = EnergyComponents{
	Loudness:        -14,
	SpectralFlux:    0.5,
	OnsetRate:       2.0,
	PercussiveRatio: 0.5,
}

// AudioFeatures are the raw measurements for one analysis attempt.
type AudioFeatures struct {
	BPM              float64
	BPMConfidence    float64
	BPMCandidates    []float64 // ascending, within [60, 200]
	Key              Key
	KeyConfidence    float64
	EnergyComponents EnergyComponents
	RawEnergy        float64
}
