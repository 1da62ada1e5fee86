package domain

import "strings"

// TrackMetadata is the input to source resolution. It is built per job and
// never mutated.
type TrackMetadata struct {
	Artist          string
	Title           string
	Album           string  // optional
	DurationSeconds float64 // 0 when unknown
}

// HasDuration reports whether the catalog knows the track length.
func (m TrackMetadata) HasDuration() bool {
	return m.DurationSeconds > 0
}

// CatalogTrack is a track as read from the catalog store.
type CatalogTrack struct {
	ID              string
	Owner           string
	Artist          string
	Title           string
	ReleaseTitle    string
	DurationSeconds float64
	GenreHints      []string // release styles/genres
}

// Metadata converts the catalog record into resolver input. A missing artist
// is searched as "Unknown".
func (t CatalogTrack) Metadata() TrackMetadata {
	artist := strings.TrimSpace(t.Artist)
	if artist == "" {
		artist = "Unknown"
	}
	return TrackMetadata{
		Artist:          artist,
		Title:           strings.TrimSpace(t.Title),
		Album:           t.ReleaseTitle,
		DurationSeconds: t.DurationSeconds,
	}
}
