package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

const (
	chromaFrame = 4096
	chromaHop   = chromaFrame / 2
	minPitchHz  = 80.0
	maxPitchHz  = 1000.0
)

// Krumhansl-Schmuckler key profiles, tonic first.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// estimateKey builds a pitch-class histogram from per-frame fundamentals and
// returns the best-correlating of the 24 major and minor keys.
func estimateKey(samples []float64, sampleRate int) (domain.Key, float64) {
	chroma := pitchClassHistogram(samples, sampleRate)
	if floats.Sum(chroma[:]) == 0 {
		return domain.UnknownKey, 0
	}
	return matchProfiles(chroma)
}

func pitchClassHistogram(samples []float64, sampleRate int) [12]float64 {
	var chroma [12]float64
	if len(samples) <= chromaFrame {
		return chroma
	}

	n := nextPow2(2 * chromaFrame)
	fft := fourier.NewFFT(n)
	frame := make([]float64, chromaFrame)
	padded := make([]float64, n)
	var coeffs []complex128
	var acf []float64

	minLag := int(math.Floor(float64(sampleRate) / maxPitchHz))
	maxLag := int(math.Floor(float64(sampleRate) / minPitchHz))

	for start := 0; start+chromaFrame < len(samples); start += chromaHop {
		hannFrame(frame, samples, start)
		clear(padded)
		copy(padded, frame)

		coeffs = fft.Coefficients(coeffs, padded)
		for i, c := range coeffs {
			coeffs[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
		}
		acf = fft.Sequence(acf, coeffs)

		freq := dominantPitch(acf, minLag, maxLag, sampleRate)
		if freq <= 0 {
			continue
		}
		chroma[PitchClass(freq)]++
	}

	if total := floats.Sum(chroma[:]); total > 0 {
		floats.Scale(1/total, chroma[:])
	}
	return chroma
}

// dominantPitch picks the autocorrelation lag with the highest positive
// correlation in [minLag, maxLag).
func dominantPitch(acf []float64, minLag, maxLag, sampleRate int) float64 {
	limit := min(maxLag, chromaFrame/2)
	best, bestLag := 0.0, 0
	for lag := minLag; lag < limit; lag++ {
		if acf[lag] > best {
			best, bestLag = acf[lag], lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return float64(sampleRate) / parabolicPeak(acf[:limit+1], bestLag)
}

// PitchClass maps a frequency to 0..11 (C..B) relative to A4 = 440 Hz.
func PitchClass(freq float64) int {
	semitones := 12 * math.Log2(freq/440)
	return int(math.Round(semitones+9+120)) % 12
}

// rotate returns the profile with its tonic moved to pitch class tonic.
func rotate(profile [12]float64, tonic int) []float64 {
	out := make([]float64, 12)
	for j := range out {
		out[j] = profile[(j-tonic+12)%12]
	}
	return out
}

func matchProfiles(chroma [12]float64) (domain.Key, float64) {
	best := -1.0
	key := domain.UnknownKey
	for tonic := 0; tonic < 12; tonic++ {
		for _, candidate := range []struct {
			mode    domain.Mode
			profile [12]float64
		}{
			{domain.ModeMajor, majorProfile},
			{domain.ModeMinor, minorProfile},
		} {
			r := stat.Correlation(chroma[:], rotate(candidate.profile, tonic), nil)
			if math.IsNaN(r) {
				continue
			}
			if r > best {
				best = r
				key = domain.Key{PitchClass: tonic, Mode: candidate.mode}
			}
		}
	}
	if !key.Known() {
		return domain.UnknownKey, 0
	}
	return key, clamp((best+1)/2, 0, 1)
}
