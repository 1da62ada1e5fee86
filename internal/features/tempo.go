package features

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const (
	fluxFrame = 2048
	fluxHop   = 512

	minTempo     = 40.0
	maxTempo     = 240.0
	priorTempo   = 120.0
	bandLow      = 60.0
	bandHigh     = 200.0
	agreeWithin  = 5.0
	DefaultBPM   = 120.0
	minInterval  = 0.2
	statsContext = 20
)

var errNoPulse = errors.New("features: no periodic pulse detected")

// Tempo is the outcome of tempo estimation.
type Tempo struct {
	BPM        float64
	Confidence float64
	Candidates []float64
}

// beatTrack is the primary estimator: an FFT spectral-flux envelope whose
// autocorrelation, weighted by a log-normal prior around 120 BPM, gives the
// beat period. It returns the rounded tempo and the number of beats found.
func beatTrack(samples []float64, sampleRate int) (float64, int, error) {
	env := spectralFlux(samples)
	if len(env) < 4 {
		return 0, 0, errNoPulse
	}
	mean, std := stat.MeanStdDev(env, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, 0, errNoPulse
	}
	centered := make([]float64, len(env))
	for i, v := range env {
		centered[i] = v - mean
	}

	fps := float64(sampleRate) / fluxHop
	lagMin := int(math.Floor(60 * fps / maxTempo))
	lagMax := int(math.Ceil(60 * fps / minTempo))
	if lagMax >= len(centered)/2 {
		lagMax = len(centered)/2 - 1
	}
	if lagMin < 1 {
		lagMin = 1
	}
	if lagMax <= lagMin {
		return 0, 0, errNoPulse
	}

	acf := autocorrelate(centered)
	weighted := make([]float64, lagMax+2)
	best := -1
	for lag := lagMin; lag <= lagMax; lag++ {
		bpm := 60 * fps / float64(lag)
		octaves := math.Log2(bpm / priorTempo)
		weighted[lag] = acf[lag] * math.Exp(-0.5*octaves*octaves)
		if weighted[lag] > 0 && (best < 0 || weighted[lag] > weighted[best]) {
			best = lag
		}
	}
	if best < 0 {
		return 0, 0, errNoPulse
	}
	weighted[lagMin-1] = weighted[lagMin]
	weighted[lagMax+1] = weighted[lagMax]
	period := parabolicPeak(weighted, best)
	bpm := math.Round(60 * fps / period)

	beats := countBeats(env, mean+std, int(period/2))
	if beats < 2 {
		return 0, beats, errNoPulse
	}
	return bpm, beats, nil
}

// spectralFlux returns the summed positive magnitude change per hop.
func spectralFlux(samples []float64) []float64 {
	if len(samples) < fluxFrame {
		return nil
	}
	fft := fourier.NewFFT(fluxFrame)
	frame := make([]float64, fluxFrame)
	var coeffs []complex128
	var prev, cur []float64

	n := (len(samples)-fluxFrame)/fluxHop + 1
	env := make([]float64, 0, n)
	for start := 0; start+fluxFrame <= len(samples); start += fluxHop {
		hannFrame(frame, samples, start)
		coeffs, cur = magnitudes(fft, coeffs, frame, cur)
		flux := 0.0
		if prev != nil {
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
		}
		env = append(env, flux)
		prev, cur = cur, prev
	}
	return env
}

// autocorrelate computes the linear autocorrelation of x via zero-padded FFT.
func autocorrelate(x []float64) []float64 {
	n := nextPow2(2 * len(x))
	fft := fourier.NewFFT(n)
	padded := make([]float64, n)
	copy(padded, x)
	coeffs := fft.Coefficients(nil, padded)
	for i, c := range coeffs {
		coeffs[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	out := fft.Sequence(nil, coeffs)
	scale := 1 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out[:len(x)]
}

// countBeats counts local maxima above threshold at least minGap frames apart.
func countBeats(env []float64, threshold float64, minGap int) int {
	minGap = max(minGap, 1)
	count, last := 0, -minGap
	for i := 1; i < len(env)-1; i++ {
		if env[i] > threshold && env[i] >= env[i-1] && env[i] > env[i+1] && i-last >= minGap {
			count++
			last = i
		}
	}
	return count
}

// onsetTempo estimates tempo from the median inter-onset interval of an
// energy-difference envelope with adaptive peak picking. It never fails:
// too few onsets yield DefaultBPM.
func onsetTempo(samples []float64, sampleRate int) float64 {
	env := make([]float64, 0, len(samples)/fluxHop)
	prev := -1.0
	for i := 0; i+fluxFrame < len(samples); i += fluxHop {
		energy := 0.0
		for _, v := range samples[i : i+fluxFrame] {
			energy += v * v
		}
		level := math.Sqrt(energy)
		strength := level
		if prev >= 0 {
			strength = math.Max(0, level-prev)
		}
		env = append(env, strength)
		prev = level
	}

	var peaks []int
	for i := statsContext; i < len(env)-statsContext; i++ {
		local := env[i-statsContext : i+statsContext]
		mean := stat.Mean(local, nil)
		std := stat.PopStdDev(local, nil)
		if env[i] > env[i-1] && env[i] > env[i+1] && env[i] > mean+1.5*std {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return DefaultBPM
	}

	var intervals []float64
	for i := 1; i < len(peaks); i++ {
		ibi := float64(peaks[i]-peaks[i-1]) * fluxHop / float64(sampleRate)
		if ibi > minInterval {
			intervals = append(intervals, ibi)
		}
	}
	if len(intervals) == 0 {
		return DefaultBPM
	}
	slices.Sort(intervals)
	median := intervals[len(intervals)/2]
	return clamp(math.Round(60/median), bandLow, bandHigh)
}

// reconcile combines the two estimates. primaryOK is false when the beat
// tracker failed, in which case the onset estimate is used at low confidence.
func reconcile(primary float64, primaryOK bool, onset float64) Tempo {
	if !primaryOK {
		return Tempo{
			BPM:        onset,
			Confidence: 0.5,
			Candidates: candidateSet(onset, onset),
		}
	}

	// Each pair's difference is rescaled to the primary's octave so a
	// half-time pair cannot win just by halving the gap. Ties keep the
	// earlier pair, which puts the primary's own tempo first.
	variants := func(v float64) [3]float64 {
		return [3]float64{v, math.Round(v / 2), math.Round(v * 2)}
	}
	best, minDiff := primary, math.Inf(1)
	for _, t := range variants(primary) {
		if t < bandLow || t > bandHigh {
			continue
		}
		for _, o := range variants(onset) {
			diff := math.Abs(t-o) * primary / t
			if diff < minDiff {
				minDiff, best = diff, t
			}
		}
	}

	bpm, conf := primary, 0.7
	if minDiff <= agreeWithin {
		bpm, conf = best, 0.9
	}
	return Tempo{BPM: bpm, Confidence: conf, Candidates: candidateSet(bpm, onset)}
}

// candidateSet is {bpm, bpm/2, bpm*2, onset} deduplicated, limited to the
// 60-200 band and sorted ascending.
func candidateSet(bpm, onset float64) []float64 {
	raw := []float64{bpm, math.Round(bpm / 2), math.Round(bpm * 2), onset}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v >= bandLow && v <= bandHigh && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
