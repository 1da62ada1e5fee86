package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

// ErrOwnerRequired rejects jobs created without an owner.
var ErrOwnerRequired = errors.New("service: owner is required")

// JobView is the polling representation of a job.
type JobView struct {
	JobID        string            `json:"jobId"`
	Owner        string            `json:"owner"`
	Status       domain.JobStatus  `json:"status"`
	TotalTracks  int               `json:"totalTracks"`
	Processed    int               `json:"processed"`
	Failed       int               `json:"failed"`
	Progress     int               `json:"progress"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Errors       []domain.JobError `json:"errors"`
}

// NewJobView derives the poll view, including progress percent.
func NewJobView(job domain.AnalysisJob) JobView {
	errs := job.Errors
	if errs == nil {
		errs = []domain.JobError{}
	}
	return JobView{
		JobID:        job.ID,
		Owner:        job.Owner,
		Status:       job.Status,
		TotalTracks:  job.TotalTracks,
		Processed:    job.Processed,
		Failed:       job.Failed,
		Progress:     job.Progress(),
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
		Errors:       errs,
	}
}

// JobService creates and reports analysis jobs.
type JobService struct {
	jobs    ports.JobStore
	catalog ports.CatalogStore
	queue   ports.JobQueue
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewJobService constructs a JobService.
func NewJobService(jobs ports.JobStore, catalog ports.CatalogStore, queue ports.JobQueue, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobs:    jobs,
		catalog: catalog,
		queue:   queue,
		logger:  logger.With("component", "jobs"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Create stores a pending job and queues it. An owner with an unfinished job
// gets that job back together with domain.ErrActiveJobExists.
func (s *JobService) Create(ctx context.Context, owner string, trackIDs []string) (domain.AnalysisJob, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return domain.AnalysisJob{}, ErrOwnerRequired
	}
	ids := dedupe(trackIDs)
	if len(ids) == 0 {
		return domain.AnalysisJob{}, domain.ErrNoTracks
	}

	active, err := s.jobs.ActiveJobForOwner(ctx, owner)
	switch {
	case err == nil:
		return active, domain.ErrActiveJobExists
	case !errors.Is(err, domain.ErrNotFound):
		return domain.AnalysisJob{}, fmt.Errorf("service: check active job: %w", err)
	}

	if s.catalog != nil {
		for _, id := range ids {
			if _, err := s.catalog.GetTrack(ctx, id); err != nil {
				return domain.AnalysisJob{}, fmt.Errorf("service: track %s: %w", id, err)
			}
		}
	}

	job, err := domain.NewAnalysisJob(s.newID(), owner, ids, s.now().UTC())
	if err != nil {
		return domain.AnalysisJob{}, err
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return domain.AnalysisJob{}, fmt.Errorf("service: create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.logger.Error("could not queue job", "job_id", job.ID, "error", err)
		if markErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Error("could not mark unqueued job failed", "job_id", job.ID, "error", markErr)
		}
		return domain.AnalysisJob{}, fmt.Errorf("service: queue job: %w", err)
	}

	s.logger.Info("job created", "job_id", job.ID, "owner", owner, "tracks", len(ids))
	return job, nil
}

// Get returns the poll view of a job.
func (s *JobService) Get(ctx context.Context, jobID string) (JobView, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	return NewJobView(job), nil
}

// RecoverStale runs at startup: jobs left in progress by a previous process
// are failed as interrupted and pending jobs are queued again.
func (s *JobService) RecoverStale(ctx context.Context) (failed, requeued int, err error) {
	stuck, err := s.jobs.JobsByStatus(ctx, domain.JobStatusInProgress)
	if err != nil {
		return 0, 0, fmt.Errorf("service: list in-progress jobs: %w", err)
	}
	for _, job := range stuck {
		if err := s.jobs.MarkFailed(ctx, job.ID, InterruptedMessage); err != nil {
			return failed, requeued, fmt.Errorf("service: fail stale job %s: %w", job.ID, err)
		}
		failed++
		s.logger.Warn("stale job marked failed", "job_id", job.ID, "processed", job.Processed, "total", job.TotalTracks)
	}

	pending, err := s.jobs.JobsByStatus(ctx, domain.JobStatusPending)
	if err != nil {
		return failed, requeued, fmt.Errorf("service: list pending jobs: %w", err)
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(ctx, job.ID); err != nil {
			s.logger.Warn("pending job not requeued", "job_id", job.ID, "error", err)
			continue
		}
		requeued++
	}
	return failed, requeued, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
