package ports

import (
	"context"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// CatalogStore reads catalogued tracks. The catalog itself is owned by the
// collection application.
type CatalogStore interface {
	GetTrack(ctx context.Context, trackID string) (domain.CatalogTrack, error)
}

// JobStore persists analysis job state. Counter updates must be atomic so
// concurrent pollers see monotonically non-decreasing counts.
type JobStore interface {
	CreateJob(ctx context.Context, job domain.AnalysisJob) error
	GetJob(ctx context.Context, jobID string) (domain.AnalysisJob, error)
	ActiveJobForOwner(ctx context.Context, owner string) (domain.AnalysisJob, error)
	JobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.AnalysisJob, error)
	MarkInProgress(ctx context.Context, jobID string, totalTracks int) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, message string) error
	// IncrementProcessed counts a successful track.
	IncrementProcessed(ctx context.Context, jobID string) error
	// IncrementFailed counts a failed track: processed and failed both grow
	// by one in the same update.
	IncrementFailed(ctx context.Context, jobID string) error
	AppendError(ctx context.Context, jobID string, entry domain.JobError) error
}

// ResultStore persists normalized analysis results.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.NormalizedResult) error
	GetResult(ctx context.Context, trackID string) (domain.NormalizedResult, error)
}

// LibraryStats exposes library-wide statistics used as normalization context.
type LibraryStats interface {
	// AnalyzedBPMs returns every stored BPM.
	AnalyzedBPMs(ctx context.Context) ([]float64, error)
	// RawEnergies returns stored raw energies, skipping the excluded track.
	RawEnergies(ctx context.Context, excludeTrackID string) ([]float64, error)
}

// EnergyIndex supports re-normalizing stored energies in bulk.
type EnergyIndex interface {
	RawEnergyIndex(ctx context.Context) (map[string]float64, error)
	UpdateEnergies(ctx context.Context, energies map[string]int) error
}
