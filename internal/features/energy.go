package features

import (
	"math"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

const (
	dynamicBlock   = 4410 // 100ms at 44.1kHz
	percussiveStep = 100
	percussiveJump = 0.1
)

// energyComponents computes the four energy sub-measures from the signal.
func energyComponents(samples []float64, sampleRate int) domain.EnergyComponents {
	return domain.EnergyComponents{
		Loudness:        rmsLoudness(samples),
		SpectralFlux:    dynamicRange(samples),
		OnsetRate:       zeroCrossingRate(samples, sampleRate),
		PercussiveRatio: percussiveRatio(samples),
	}
}

// RawEnergy is the weighted sum of the normalized components.
func RawEnergy(c domain.EnergyComponents) float64 {
	loudness := clamp((c.Loudness+60)/60, 0, 1)
	flux := clamp(c.SpectralFlux/10, 0, 1)
	onset := clamp(c.OnsetRate/5, 0, 1)
	perc := clamp(c.PercussiveRatio, 0, 1)
	return loudness*0.4 + flux*0.3 + onset*0.2 + perc*0.1
}

// rmsLoudness is RMS level in dB, clamped to [-60, 0].
func rmsLoudness(samples []float64) float64 {
	if len(samples) == 0 {
		return -60
	}
	sum := 0.0
	for _, v := range samples {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return clamp(20*math.Log10(rms+1e-10), -60, 0)
}

// dynamicRange is the largest mean absolute amplitude of any 100ms block
// after the first, scaled to [0, 10].
func dynamicRange(samples []float64) float64 {
	peak := 0.0
	for i := dynamicBlock; i+dynamicBlock < len(samples); i += dynamicBlock {
		sum := 0.0
		for _, v := range samples[i : i+dynamicBlock] {
			sum += math.Abs(v)
		}
		peak = math.Max(peak, sum/dynamicBlock)
	}
	return math.Min(10, peak*100)
}

// zeroCrossingRate counts sign changes, expressed per 100 samples at the
// sample rate.
func zeroCrossingRate(samples []float64, sampleRate int) float64 {
	if len(samples) == 0 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i] >= 0) != (samples[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)) * float64(sampleRate) / 100
}

// percussiveRatio is the share of amplitude found where the signal jumps by
// more than 0.1 between points 100 samples apart. Silence yields 0.5.
func percussiveRatio(samples []float64) float64 {
	high, total := 0.0, 0.0
	for i := 0; i < len(samples); i += percussiveStep {
		v := math.Abs(samples[i])
		total += v
		if i > 0 && math.Abs(samples[i]-samples[i-percussiveStep]) > percussiveJump {
			high += v
		}
	}
	if total == 0 {
		return 0.5
	}
	return math.Min(1, high/total)
}
