package domain

// VideoCandidate is one scored search result. Candidates live only for the
// duration of a single resolution call.
type VideoCandidate struct {
	SourceID        string
	Title           string
	ChannelName     string
	DurationSeconds float64
	Score           float64
}

// ResolvedSource is the audio source picked for a track.
type ResolvedSource struct {
	SourceID        string
	Title           string
	DurationSeconds float64
	Confidence      float64
}
