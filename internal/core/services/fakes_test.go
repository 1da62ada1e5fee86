package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

type memStore struct {
	mu        sync.Mutex
	tracks    map[string]domain.CatalogTrack
	jobs      map[string]domain.AnalysisJob
	results   map[string]domain.NormalizedResult
	bpms      []float64
	energies  []float64
	saveErrs  int // SaveResult fails this many times
	incrErrs  int // IncrementProcessed fails this many times
	snapshots []domain.AnalysisJob
}

func newMemStore(tracks ...domain.CatalogTrack) *memStore {
	s := &memStore{
		tracks:  map[string]domain.CatalogTrack{},
		jobs:    map[string]domain.AnalysisJob{},
		results: map[string]domain.NormalizedResult{},
	}
	for _, t := range tracks {
		s.tracks[t.ID] = t
	}
	return s
}

func (s *memStore) GetTrack(_ context.Context, id string) (domain.CatalogTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return domain.CatalogTrack{}, fmt.Errorf("track %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (s *memStore) CreateJob(_ context.Context, job domain.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memStore) GetJob(_ context.Context, id string) (domain.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.AnalysisJob{}, domain.ErrNotFound
	}
	j.Errors = append([]domain.JobError(nil), j.Errors...)
	return j, nil
}

func (s *memStore) ActiveJobForOwner(_ context.Context, owner string) (domain.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Owner == owner && j.Status.Active() {
			return j, nil
		}
	}
	return domain.AnalysisJob{}, domain.ErrNotFound
}

func (s *memStore) JobsByStatus(_ context.Context, status domain.JobStatus) ([]domain.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AnalysisJob
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *memStore) transition(id string, to domain.JobStatus, mutate func(*domain.AnalysisJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(j.Status, to) {
		return domain.ErrInvalidTransition
	}
	j.Status = to
	mutate(&j)
	s.jobs[id] = j
	s.snapshots = append(s.snapshots, j)
	return nil
}

func (s *memStore) MarkInProgress(_ context.Context, id string, total int) error {
	return s.transition(id, domain.JobStatusInProgress, func(j *domain.AnalysisJob) {
		now := time.Now()
		j.StartedAt = &now
		j.TotalTracks = total
	})
}

func (s *memStore) MarkCompleted(_ context.Context, id string) error {
	return s.transition(id, domain.JobStatusCompleted, func(j *domain.AnalysisJob) {
		now := time.Now()
		j.CompletedAt = &now
	})
}

func (s *memStore) MarkFailed(_ context.Context, id, msg string) error {
	return s.transition(id, domain.JobStatusFailed, func(j *domain.AnalysisJob) {
		now := time.Now()
		j.CompletedAt = &now
		j.ErrorMessage = msg
	})
}

func (s *memStore) bump(id string, failed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Processed < j.TotalTracks {
		j.Processed++
		if failed {
			j.Failed++
		}
	}
	s.jobs[id] = j
	s.snapshots = append(s.snapshots, j)
	return nil
}

func (s *memStore) IncrementProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	if s.incrErrs > 0 {
		s.incrErrs--
		s.mu.Unlock()
		return errors.New("database is locked")
	}
	s.mu.Unlock()
	return s.bump(id, false)
}

func (s *memStore) IncrementFailed(_ context.Context, id string) error {
	return s.bump(id, true)
}

func (s *memStore) AppendError(_ context.Context, id string, e domain.JobError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Errors = append(j.Errors, e)
	s.jobs[id] = j
	return nil
}

func (s *memStore) SaveResult(_ context.Context, r domain.NormalizedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErrs > 0 {
		s.saveErrs--
		return errors.New("disk I/O error")
	}
	s.results[r.TrackID] = r
	return nil
}

func (s *memStore) GetResult(_ context.Context, id string) (domain.NormalizedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return domain.NormalizedResult{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *memStore) AnalyzedBPMs(context.Context) ([]float64, error) {
	return s.bpms, nil
}

func (s *memStore) RawEnergies(context.Context, string) ([]float64, error) {
	return s.energies, nil
}

func (s *memStore) stores() Stores {
	return Stores{Catalog: s, Jobs: s, Results: s, Library: s}
}

var (
	_ ports.CatalogStore = (*memStore)(nil)
	_ ports.JobStore     = (*memStore)(nil)
	_ ports.ResultStore  = (*memStore)(nil)
	_ ports.LibraryStats = (*memStore)(nil)
)

// fakeResolver fails for titles listed in noSource or broken.
type fakeResolver struct {
	noSource map[string]bool
	broken   map[string]bool
	panicOn  string
}

func (r fakeResolver) Resolve(_ context.Context, m domain.TrackMetadata) (domain.ResolvedSource, error) {
	if m.Title == r.panicOn && r.panicOn != "" {
		panic("resolver exploded")
	}
	if r.noSource[m.Title] {
		return domain.ResolvedSource{}, ports.NoSourceError{Artist: m.Artist, Title: m.Title}
	}
	if r.broken[m.Title] {
		return domain.ResolvedSource{}, errors.New("search failed after 3 attempts: status 503")
	}
	return domain.ResolvedSource{SourceID: "yt-" + m.Title, Title: m.Artist + " - " + m.Title, DurationSeconds: 300, Confidence: 0.8}, nil
}

type fakeAcquirer struct {
	err error
}

func (a fakeAcquirer) Acquire(context.Context, domain.ResolvedSource) (domain.AudioSample, error) {
	if a.err != nil {
		return domain.AudioSample{}, a.err
	}
	return domain.AudioSample{Samples: make([]float64, 100), SampleRate: domain.SampleRate}, nil
}

type fakeExtractor struct {
	features domain.AudioFeatures
}

func (e fakeExtractor) Extract(domain.AudioSample) domain.AudioFeatures {
	return e.features
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []domain.AnalysisJob
}

func (n *recordingNotifier) JobUpdated(job domain.AnalysisJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

type fakeQueue struct {
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}
