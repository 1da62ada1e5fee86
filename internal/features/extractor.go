// Package features computes tempo, key and energy descriptors from a decoded
// sample. Every stage degrades to a fixed fallback instead of failing.
package features

import (
	"fmt"
	"log/slog"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// Extractor runs the three feature stages.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "features")}
}

// Extract never fails; stages that panic or find nothing use their fallback
// and a lower confidence.
func (e *Extractor) Extract(sample domain.AudioSample) domain.AudioFeatures {
	rate := sample.SampleRate
	if rate <= 0 {
		rate = domain.SampleRate
	}

	tempo := e.tempo(sample.Samples, rate)
	key, keyConf := e.key(sample.Samples, rate)
	components := e.energy(sample.Samples, rate)

	f := domain.AudioFeatures{
		BPM:              tempo.BPM,
		BPMConfidence:    tempo.Confidence,
		BPMCandidates:    tempo.Candidates,
		Key:              key,
		KeyConfidence:    keyConf,
		EnergyComponents: components,
		RawEnergy:        RawEnergy(components),
	}
	e.logger.Debug("features extracted",
		"bpm", f.BPM,
		"bpm_confidence", f.BPMConfidence,
		"key", f.Key.String(),
		"key_confidence", f.KeyConfidence,
		"raw_energy", f.RawEnergy,
	)
	return f
}

func (e *Extractor) tempo(samples []float64, rate int) (t Tempo) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("tempo extraction failed", "error", fmt.Sprint(r))
			t = Tempo{BPM: DefaultBPM, Confidence: 0.5, Candidates: candidateSet(DefaultBPM, DefaultBPM)}
		}
	}()

	onset := onsetTempo(samples, rate)
	primary, beats, err := beatTrack(samples, rate)
	if err != nil {
		e.logger.Debug("beat tracker found no pulse, using onset estimate", "beats", beats, "onset_bpm", onset)
		return reconcile(0, false, onset)
	}
	e.logger.Debug("tempo estimates", "primary_bpm", primary, "beats", beats, "onset_bpm", onset)
	return reconcile(primary, true, onset)
}

func (e *Extractor) key(samples []float64, rate int) (k domain.Key, conf float64) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("key extraction failed", "error", fmt.Sprint(r))
			k, conf = domain.UnknownKey, 0
		}
	}()
	return estimateKey(samples, rate)
}

func (e *Extractor) energy(samples []float64, rate int) (c domain.EnergyComponents) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("energy extraction failed", "error", fmt.Sprint(r))
			c = domain.DefaultEnergyComponents
		}
	}()
	return energyComponents(samples, rate)
}
