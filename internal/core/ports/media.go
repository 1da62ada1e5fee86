package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// SearchQuery is a video search request.
type SearchQuery struct {
	Query          string
	Category       string // "music" restricts to the music category
	DurationBucket string // "short", "medium" or "long"
	MaxResults     int
}

// SearchHit is a ranked search result.
type SearchHit struct {
	ID          string
	Title       string
	ChannelName string
}

// VideoDetail is the detail lookup for a single result.
type VideoDetail struct {
	ID              string
	Title           string
	ChannelName     string
	DurationSeconds float64
}

// VideoSearcher is the external video search service. Implementations retry
// transient transport errors themselves.
type VideoSearcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, error)
	Details(ctx context.Context, ids []string) ([]VideoDetail, error)
}

// SampleRequest asks the media service for a time window of audio.
type SampleRequest struct {
	SourceID        string
	StartSeconds    float64
	DurationSeconds float64
}

// SampleFetcher returns compressed audio bytes for the requested window only.
type SampleFetcher interface {
	FetchSample(ctx context.Context, req SampleRequest) ([]byte, error)
}

// PCMDecoder turns compressed audio into little-endian 16-bit mono PCM at
// domain.SampleRate.
type PCMDecoder interface {
	Decode(ctx context.Context, compressed []byte) ([]byte, error)
}

// ProgressNotifier receives a job snapshot after every state change.
type ProgressNotifier interface {
	JobUpdated(job domain.AnalysisJob)
}

// NoSourceError reports that no candidate survived scoring for a track.
type NoSourceError struct {
	Artist string
	Title  string
}

func (e NoSourceError) Error() string {
	if e.Title == "" && e.Artist == "" {
		return domain.ErrNoSource.Error()
	}
	return fmt.Sprintf("no confident source found for %q by %q", e.Title, e.Artist)
}

func (e NoSourceError) Is(target error) bool {
	return target == domain.ErrNoSource
}

// IsNoSource reports whether err is a data-absence failure.
func IsNoSource(err error) bool {
	return errors.Is(err, domain.ErrNoSource)
}
