package normalize

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// Percentile ranks raw against the library's raw energies: the fraction of
// reference values strictly below it. With no reference the raw value is
// clamped to [0, 1].
func Percentile(raw float64, reference []float64) float64 {
	if len(reference) == 0 {
		return clamp01(raw)
	}
	below := 0
	for _, v := range reference {
		if v < raw {
			below++
		}
	}
	return clamp01(float64(below) / float64(len(reference)))
}

// Energy returns the percentile and its 0-10 scale value.
func Energy(raw float64, reference []float64) (percentile float64, scaled int) {
	p := Percentile(raw, reference)
	return p, domain.EnergyScale(p)
}

// Recalibrate rescores every track against all the other tracks' raw
// energies and returns the 0-10 value per track id.
func Recalibrate(raw map[string]float64) map[string]int {
	sorted := make([]float64, 0, len(raw))
	for _, v := range raw {
		sorted = append(sorted, v)
	}
	slices.Sort(sorted)

	out := make(map[string]int, len(raw))
	for id, v := range raw {
		if len(sorted) == 1 {
			out[id] = domain.EnergyScale(clamp01(v))
			continue
		}
		below := sort.SearchFloat64s(sorted, v)
		out[id] = domain.EnergyScale(float64(below) / float64(len(sorted)-1))
	}
	return out
}

// Energy levels.
const (
	LevelVeryLow  = "Very Low"
	LevelLow      = "Low"
	LevelMedium   = "Medium"
	LevelHigh     = "High"
	LevelVeryHigh = "Very High"
)

// Classify names the band of a normalized energy value.
func Classify(normalized float64) string {
	switch {
	case normalized < 0.2:
		return LevelVeryLow
	case normalized < 0.4:
		return LevelLow
	case normalized < 0.6:
		return LevelMedium
	case normalized < 0.8:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// EnergyStats summarises the library's raw energies.
type EnergyStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
}

// DefaultEnergyStats describe an empty library.
var DefaultEnergyStats = EnergyStats{Mean: 0.5, Median: 0.5, Min: 0, Max: 1, StdDev: 0.25}

// Stats computes population statistics; the median is the upper middle value.
func Stats(values []float64) EnergyStats {
	if len(values) == 0 {
		return DefaultEnergyStats
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mean, std := stat.PopMeanStdDev(sorted, nil)
	return EnergyStats{
		Count:  len(sorted),
		Mean:   mean,
		Median: sorted[len(sorted)/2],
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		StdDev: std,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
