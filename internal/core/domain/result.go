package domain

import "time"

// NormalizedResult is the final analysis record persisted against a track.
// Re-analysis overwrites it.
type NormalizedResult struct {
	TrackID       string    `json:"trackId"`
	BPM           int       `json:"bpm"`
	RawBPM        float64   `json:"rawBpm"`
	BPMAdjusted   bool      `json:"bpmAdjusted"`
	BPMReason     string    `json:"bpmReason,omitempty"`
	Key           Key       `json:"key"`
	KeyConfidence float64   `json:"keyConfidence"`
	Energy        int       `json:"energy"`    // 0..10
	RawEnergy     float64   `json:"rawEnergy"` // retained for re-normalization
	Confidence    float64   `json:"confidence"`
	SourceID      string    `json:"sourceId"`
	SourceTitle   string    `json:"sourceTitle"`
	AnalyzedAt    time.Time `json:"analyzedAt"`
}

// EnergyScale converts a [0,1] percentile into the stored 0..10 scale.
func EnergyScale(percentile float64) int {
	if percentile < 0 {
		percentile = 0
	}
	if percentile > 1 {
		percentile = 1
	}
	return int(percentile*10 + 0.5)
}
