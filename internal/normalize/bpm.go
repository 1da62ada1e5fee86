// Package normalize reconciles detector output with genre and library
// context: tempo octave correction and percentile energy.
package normalize

import (
	"math"
	"slices"
	"sort"
)

const (
	lowTempo          = 80.0
	highTempo         = 160.0
	trustedConfidence = 0.8
	alternateDiscount = 0.9
	medianWindow      = 20.0
	typicalWindow     = 5.0
)

// CommonTempos are used when no genre is known.
var CommonTempos = []float64{90, 100, 110, 120, 128, 130, 140, 150, 170}

// Reasons reported with a BPM decision.
const (
	ReasonOriginal  = "original detection"
	ReasonDoubled   = "half-time correction (doubled)"
	ReasonHalved    = "double-time correction (halved)"
	ReasonAlternate = "alternative candidate"
)

// BPMInput is one tempo decision request.
type BPMInput struct {
	RawBPM     float64
	Confidence float64
	Candidates []float64
	// LibraryMedian is ignored unless HasLibraryMedian is set.
	LibraryMedian    float64
	HasLibraryMedian bool
	Genre            GenreText
}

// BPMResult is the chosen tempo.
type BPMResult struct {
	BPM         int
	WasAdjusted bool
	Reason      string
	Genre       string
}

type bpmOption struct {
	bpm    float64
	score  float64
	reason string
}

// NormalizeBPM scores the raw tempo, its octave corrections and the
// detector's alternates, and returns the best. Equal scores keep the raw
// tempo ahead of corrections, and corrections ahead of alternates.
func NormalizeBPM(in BPMInput) BPMResult {
	genre, hasGenre := DetectGenre(in.Genre)
	score := func(bpm, confidence float64) float64 {
		s := confidence
		if hasGenre {
			s += genreScore(genre, bpm)
		} else {
			s += genericScore(bpm)
		}
		if slices.Contains(in.Candidates, bpm) {
			s += 0.15
		}
		if in.HasLibraryMedian && abs(bpm-in.LibraryMedian) < medianWindow {
			s += 0.1
		}
		return s
	}

	options := []bpmOption{{bpm: in.RawBPM, score: score(in.RawBPM, in.Confidence), reason: ReasonOriginal}}
	if in.RawBPM < lowTempo && in.Confidence <= trustedConfidence {
		doubled := in.RawBPM * 2
		options = append(options, bpmOption{bpm: doubled, score: score(doubled, in.Confidence), reason: ReasonDoubled})
	}
	if in.RawBPM > highTempo && in.Confidence <= trustedConfidence {
		halved := in.RawBPM / 2
		options = append(options, bpmOption{bpm: halved, score: score(halved, in.Confidence), reason: ReasonHalved})
	}
	for _, c := range in.Candidates {
		if c == in.RawBPM {
			continue
		}
		options = append(options, bpmOption{bpm: c, score: score(c, in.Confidence*alternateDiscount), reason: ReasonAlternate})
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].score > options[j].score
	})
	winner := options[0]

	res := BPMResult{
		BPM:         int(math.Round(winner.bpm)),
		WasAdjusted: winner.bpm != in.RawBPM,
		Reason:      winner.reason,
	}
	if hasGenre {
		res.Genre = genre.Name
	}
	return res
}

func genreScore(g GenreRange, bpm float64) float64 {
	s := -0.15
	if g.Contains(bpm) {
		s = 0.2
	}
	if slices.Contains(g.Typical, bpm) {
		return s + 0.15
	}
	if abs(nearest(g.Typical, bpm)-bpm) < typicalWindow {
		s += 0.08
	}
	return s
}

func genericScore(bpm float64) float64 {
	s := 0.0
	if bpm >= 60 && bpm <= 180 {
		s += 0.1
	}
	if abs(nearest(CommonTempos, bpm)-bpm) < typicalWindow {
		s += 0.05
	}
	return s
}

// Median returns the middle value, averaging the middle pair for even
// counts. ok is false for an empty input.
func Median(values []float64) (median float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}
