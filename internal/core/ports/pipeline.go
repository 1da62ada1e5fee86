package ports

import (
	"context"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// SourceResolver finds the audio source for a track. A track without a
// confident match yields a NoSourceError.
type SourceResolver interface {
	Resolve(ctx context.Context, track domain.TrackMetadata) (domain.ResolvedSource, error)
}

// AudioAcquirer fetches and decodes the analysis window of a source.
type AudioAcquirer interface {
	Acquire(ctx context.Context, src domain.ResolvedSource) (domain.AudioSample, error)
}

// FeatureExtractor measures a decoded sample. It never fails.
type FeatureExtractor interface {
	Extract(sample domain.AudioSample) domain.AudioFeatures
}

// JobQueue schedules a stored job for background execution. Enqueue must
// not block.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}
