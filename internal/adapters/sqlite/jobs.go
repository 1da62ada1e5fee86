package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

const jobColumns = "id, owner, track_ids, status, total_tracks, processed, failed, error_message, created_at, started_at, completed_at"

// CreateJob inserts a new analysis job.
func (a *Adapter) CreateJob(ctx context.Context, job domain.AnalysisJob) error {
	ids, err := json.Marshal(nonNil(job.TrackIDs))
	if err != nil {
		return fmt.Errorf("failed to encode track ids: %w", err)
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = a.now()
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, owner, track_ids, status, total_tracks, processed, failed, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		job.Owner,
		string(ids),
		string(job.Status),
		job.TotalTracks,
		job.Processed,
		job.Failed,
		nullString(job.ErrorMessage),
		formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob loads a job with its per-track error list.
func (a *Adapter) GetJob(ctx context.Context, jobID string) (domain.AnalysisJob, error) {
	row := a.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM analysis_jobs WHERE id = ?", jobID)
	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return domain.AnalysisJob{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
		}
		return domain.AnalysisJob{}, fmt.Errorf("failed to load job: %w", err)
	}
	errs, err := a.jobErrors(ctx, jobID)
	if err != nil {
		return domain.AnalysisJob{}, err
	}
	job.Errors = errs
	return job, nil
}

// ActiveJobForOwner returns the newest pending or in-progress job for owner.
func (a *Adapter) ActiveJobForOwner(ctx context.Context, owner string) (domain.AnalysisJob, error) {
	row := a.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+` FROM analysis_jobs
		WHERE owner = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		owner, string(domain.JobStatusPending), string(domain.JobStatusInProgress),
	)
	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return domain.AnalysisJob{}, domain.ErrNotFound
		}
		return domain.AnalysisJob{}, fmt.Errorf("failed to load active job: %w", err)
	}
	errs, err := a.jobErrors(ctx, job.ID)
	if err != nil {
		return domain.AnalysisJob{}, err
	}
	job.Errors = errs
	return job, nil
}

// JobsByStatus lists jobs in the given status, oldest first. Error lists are
// not loaded.
func (a *Adapter) JobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.AnalysisJob, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM analysis_jobs WHERE status = ? ORDER BY created_at, id",
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// MarkInProgress moves a pending job to in_progress and records its total.
func (a *Adapter) MarkInProgress(ctx context.Context, jobID string, totalTracks int) error {
	return a.transition(ctx, jobID, domain.JobStatusInProgress,
		"total_tracks = ?, started_at = COALESCE(started_at, ?)",
		totalTracks, formatTime(a.now()),
	)
}

// MarkCompleted finishes an in-progress job.
func (a *Adapter) MarkCompleted(ctx context.Context, jobID string) error {
	return a.transition(ctx, jobID, domain.JobStatusCompleted,
		"completed_at = ?",
		formatTime(a.now()),
	)
}

// MarkFailed fails a pending or in-progress job with a message.
func (a *Adapter) MarkFailed(ctx context.Context, jobID string, message string) error {
	return a.transition(ctx, jobID, domain.JobStatusFailed,
		"error_message = ?, completed_at = ?",
		message, formatTime(a.now()),
	)
}

// transition applies a status change guarded by the allowed predecessor
// states, so a terminal job is never rewritten.
func (a *Adapter) transition(ctx context.Context, jobID string, to domain.JobStatus, set string, args ...any) error {
	from := domain.AllowedPredecessors(to)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")

	query := "UPDATE analysis_jobs SET status = ?, " + set + " WHERE id = ? AND status IN (" + placeholders + ")"
	params := make([]any, 0, len(args)+len(from)+2)
	params = append(params, string(to))
	params = append(params, args...)
	params = append(params, jobID)
	for _, s := range from {
		params = append(params, string(s))
	}

	res, err := a.db.ExecContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", to, err)
	}
	if affected > 0 {
		return nil
	}
	exists, err := a.jobExists(ctx, jobID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return fmt.Errorf("job %s to %s: %w", jobID, to, domain.ErrInvalidTransition)
}

// IncrementProcessed counts one successful track. The count never exceeds
// total_tracks.
func (a *Adapter) IncrementProcessed(ctx context.Context, jobID string) error {
	return a.bump(ctx, jobID, "processed = processed + 1")
}

// IncrementFailed counts one failed track in processed and failed together.
func (a *Adapter) IncrementFailed(ctx context.Context, jobID string) error {
	return a.bump(ctx, jobID, "processed = processed + 1, failed = failed + 1")
}

func (a *Adapter) bump(ctx context.Context, jobID, set string) error {
	res, err := a.db.ExecContext(ctx,
		"UPDATE analysis_jobs SET "+set+" WHERE id = ? AND processed < total_tracks",
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job counters: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		exists, err := a.jobExists(ctx, jobID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
		}
	}
	return nil
}

// AppendError records a per-track failure on the job.
func (a *Adapter) AppendError(ctx context.Context, jobID string, entry domain.JobError) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = a.now()
	}
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO analysis_job_errors (job_id, track_id, message, created_at) VALUES (?, ?, ?, ?)",
		jobID, entry.TrackID, entry.Message, formatTime(ts),
	)
	if err != nil {
		return fmt.Errorf("failed to append job error: %w", err)
	}
	return nil
}

func (a *Adapter) jobErrors(ctx context.Context, jobID string) ([]domain.JobError, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT track_id, message, created_at FROM analysis_job_errors WHERE job_id = ? ORDER BY id",
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load job errors: %w", err)
	}
	defer rows.Close()

	errs := []domain.JobError{}
	for rows.Next() {
		var (
			entry domain.JobError
			raw   sql.NullString
		)
		if err := rows.Scan(&entry.TrackID, &entry.Message, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan job error: %w", err)
		}
		if entry.Timestamp, err = parseTime(raw); err != nil {
			return nil, err
		}
		errs = append(errs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job errors: %w", err)
	}
	return errs, nil
}

func (a *Adapter) jobExists(ctx context.Context, jobID string) (bool, error) {
	var id string
	err := a.db.QueryRowContext(ctx, "SELECT id FROM analysis_jobs WHERE id = ?", jobID).Scan(&id)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up job: %w", err)
	}
	return true, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (domain.AnalysisJob, error) {
	var (
		job         domain.AnalysisJob
		trackIDs    string
		status      string
		errorMsg    sql.NullString
		createdRaw  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Owner,
		&trackIDs,
		&status,
		&job.TotalTracks,
		&job.Processed,
		&job.Failed,
		&errorMsg,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return domain.AnalysisJob{}, err
	}
	if err := json.Unmarshal([]byte(trackIDs), &job.TrackIDs); err != nil {
		return domain.AnalysisJob{}, fmt.Errorf("decode track ids: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.ErrorMessage = errorMsg.String
	job.Errors = []domain.JobError{}

	var err error
	if job.CreatedAt, err = parseTime(createdRaw); err != nil {
		return domain.AnalysisJob{}, err
	}
	if job.StartedAt, err = parseOptionalTime(startedRaw); err != nil {
		return domain.AnalysisJob{}, err
	}
	if job.CompletedAt, err = parseOptionalTime(finishedRaw); err != nil {
		return domain.AnalysisJob{}, err
	}
	return job, nil
}
