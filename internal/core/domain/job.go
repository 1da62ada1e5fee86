package domain

import (
	"math"
	"time"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether the job still occupies its owner's single slot.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusInProgress
}

// CanTransition reports whether a job may move from one status to another.
// Re-applying the current non-terminal status is allowed so that retried
// updates stay idempotent.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusPending || to == JobStatusInProgress || to == JobStatusFailed
	case JobStatusInProgress:
		return to == JobStatusInProgress || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// AllowedPredecessors lists the statuses from which to is reachable.
func AllowedPredecessors(to JobStatus) []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// JobError records one failed track.
type JobError struct {
	TrackID   string    `json:"trackId"`
	Message   string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisJob is one analysis request over an ordered list of tracks.
//
// Invariants: Failed <= Processed <= TotalTracks; Status only moves
// pending -> in_progress -> {completed|failed}.
type AnalysisJob struct {
	ID           string     `json:"jobId"`
	Owner        string     `json:"owner"`
	TrackIDs     []string   `json:"trackIds"`
	Status       JobStatus  `json:"status"`
	TotalTracks  int        `json:"totalTracks"`
	Processed    int        `json:"processed"`
	Failed       int        `json:"failed"`
	Errors       []JobError `json:"errors"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// NewAnalysisJob builds a pending job. Track ids are copied.
func NewAnalysisJob(id, owner string, trackIDs []string, now time.Time) (AnalysisJob, error) {
	if len(trackIDs) == 0 {
		return AnalysisJob{}, ErrNoTracks
	}
	ids := make([]string, len(trackIDs))
	copy(ids, trackIDs)
	return AnalysisJob{
		ID:          id,
		Owner:       owner,
		TrackIDs:    ids,
		Status:      JobStatusPending,
		TotalTracks: len(ids),
		Errors:      []JobError{},
		CreatedAt:   now,
	}, nil
}

// Progress returns round(processed/total*100), or 0 for an empty job.
func (j AnalysisJob) Progress() int {
	if j.TotalTracks <= 0 {
		return 0
	}
	return int(math.Round(float64(j.Processed) / float64(j.TotalTracks) * 100))
}

// Succeeded is the number of tracks that were analyzed and persisted.
func (j AnalysisJob) Succeeded() int {
	return j.Processed - j.Failed
}
