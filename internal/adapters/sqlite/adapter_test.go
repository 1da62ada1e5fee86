package sqlite

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

var (
	_ ports.CatalogStore = (*Adapter)(nil)
	_ ports.JobStore     = (*Adapter)(nil)
	_ ports.ResultStore  = (*Adapter)(nil)
	_ ports.LibraryStats = (*Adapter)(nil)
	_ ports.EnergyIndex  = (*Adapter)(nil)
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seedJob(t *testing.T, a *Adapter, id, owner string, trackIDs ...string) domain.AnalysisJob {
	t.Helper()
	job, err := domain.NewAnalysisJob(id, owner, trackIDs, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, a.CreateJob(context.Background(), job))
	return job
}

func TestAdapter_Tracks(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	track := domain.CatalogTrack{
		ID:              "t1",
		Owner:           "dj",
		Artist:          "Burial",
		Title:           "Archangel",
		ReleaseTitle:    "Untrue",
		DurationSeconds: 238,
		GenreHints:      []string{"Dubstep", "UK Garage"},
	}
	require.NoError(t, a.UpsertTrack(ctx, track, "/music/burial/archangel.mp3"))

	got, err := a.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, track, got)

	track.Title = "Archangel (Remastered)"
	track.GenreHints = nil
	require.NoError(t, a.UpsertTrack(ctx, track, ""))
	got, err = a.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Archangel (Remastered)", got.Title)
	assert.Empty(t, got.GenreHints)

	require.NoError(t, a.UpsertTrack(ctx, domain.CatalogTrack{ID: "t2", Owner: "other", Artist: "Aphex Twin", Title: "Xtal"}, ""))
	mine, err := a.ListTracks(ctx, "dj")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	all, err := a.ListTracks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Aphex Twin", all[0].Artist)

	_, err = a.GetTrack(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Error(t, a.UpsertTrack(ctx, domain.CatalogTrack{Title: "no id"}, ""))
}

func TestAdapter_JobLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	seedJob(t, a, "j1", "dj", "t1", "t2", "t3")

	job, err := a.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, []string{"t1", "t2", "t3"}, job.TrackIDs)
	assert.Equal(t, 3, job.TotalTracks)
	assert.Empty(t, job.Errors)
	assert.Nil(t, job.StartedAt)

	require.NoError(t, a.MarkInProgress(ctx, "j1", 3))
	require.NoError(t, a.IncrementProcessed(ctx, "j1"))
	require.NoError(t, a.IncrementFailed(ctx, "j1"))
	require.NoError(t, a.AppendError(ctx, "j1", domain.JobError{TrackID: "t2", Message: "no audio source found"}))
	require.NoError(t, a.IncrementProcessed(ctx, "j1"))
	require.NoError(t, a.MarkCompleted(ctx, "j1"))

	job, err = a.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Processed)
	assert.Equal(t, 1, job.Failed)
	assert.Equal(t, 100, job.Progress())
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, "t2", job.Errors[0].TrackID)
	assert.False(t, job.Errors[0].Timestamp.IsZero())
}

func TestAdapter_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, a *Adapter)
		apply   func(a *Adapter) error
		wantErr error
		want    domain.JobStatus
	}{
		{
			name:    "pending to failed",
			apply:   func(a *Adapter) error { return a.MarkFailed(context.Background(), "j1", "queue full") },
			want:    domain.JobStatusFailed,
		},
		{
			name:    "pending cannot complete",
			apply:   func(a *Adapter) error { return a.MarkCompleted(context.Background(), "j1") },
			wantErr: domain.ErrInvalidTransition,
			want:    domain.JobStatusPending,
		},
		{
			name: "completed is terminal",
			prepare: func(t *testing.T, a *Adapter) {
				require.NoError(t, a.MarkInProgress(context.Background(), "j1", 1))
				require.NoError(t, a.MarkCompleted(context.Background(), "j1"))
			},
			apply:   func(a *Adapter) error { return a.MarkFailed(context.Background(), "j1", "late") },
			wantErr: domain.ErrInvalidTransition,
			want:    domain.JobStatusCompleted,
		},
		{
			name: "failed cannot restart",
			prepare: func(t *testing.T, a *Adapter) {
				require.NoError(t, a.MarkFailed(context.Background(), "j1", "interrupted"))
			},
			apply:   func(a *Adapter) error { return a.MarkInProgress(context.Background(), "j1", 1) },
			wantErr: domain.ErrInvalidTransition,
			want:    domain.JobStatusFailed,
		},
		{
			name:    "unknown job",
			apply:   func(a *Adapter) error { return a.MarkInProgress(context.Background(), "nope", 1) },
			wantErr: domain.ErrNotFound,
			want:    domain.JobStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t)
			seedJob(t, a, "j1", "dj", "t1")
			if tt.prepare != nil {
				tt.prepare(t, a)
			}

			err := tt.apply(a)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			job, err := a.GetJob(context.Background(), "j1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, job.Status)
		})
	}
}

func TestAdapter_MarkFailedKeepsMessage(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	seedJob(t, a, "j1", "dj", "t1")

	require.NoError(t, a.MarkFailed(ctx, "j1", "interrupted"))
	job, err := a.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "interrupted", job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)
}

func TestAdapter_CountersNeverExceedTotal(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	seedJob(t, a, "j1", "dj", "t1", "t2")
	require.NoError(t, a.MarkInProgress(ctx, "j1", 2))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = a.IncrementProcessed(ctx, "j1")
			} else {
				_ = a.IncrementFailed(ctx, "j1")
			}
		}(i)
	}
	wg.Wait()

	job, err := a.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 2, job.Processed)
	assert.LessOrEqual(t, job.Failed, job.Processed)

	assert.ErrorIs(t, a.IncrementProcessed(ctx, "missing"), domain.ErrNotFound)
}

func TestAdapter_ActiveJobForOwner(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	_, err := a.ActiveJobForOwner(ctx, "dj")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	seedJob(t, a, "old", "dj", "t1")
	require.NoError(t, a.MarkFailed(ctx, "old", "interrupted"))
	_, err = a.ActiveJobForOwner(ctx, "dj")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	seedJob(t, a, "current", "dj", "t1")
	seedJob(t, a, "theirs", "someone-else", "t1")
	job, err := a.ActiveJobForOwner(ctx, "dj")
	require.NoError(t, err)
	assert.Equal(t, "current", job.ID)

	pending, err := a.JobsByStatus(ctx, domain.JobStatusPending)
	require.NoError(t, err)
	ids := []string{pending[0].ID, pending[1].ID}
	sort.Strings(ids)
	assert.Equal(t, []string{"current", "theirs"}, ids)
}

func TestAdapter_Results(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	_, err := a.GetResult(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	analyzed := time.Date(2026, 2, 1, 10, 5, 0, 0, time.UTC)
	result := domain.NormalizedResult{
		TrackID:       "t1",
		BPM:           140,
		RawBPM:        70.2,
		BPMAdjusted:   true,
		BPMReason:     "doubled",
		Key:           domain.Key{PitchClass: 9, Mode: domain.ModeMinor},
		KeyConfidence: 0.81,
		Energy:        7,
		RawEnergy:     0.64,
		Confidence:    0.9,
		SourceID:      "abc123",
		SourceTitle:   "Burial - Archangel",
		AnalyzedAt:    analyzed,
	}
	require.NoError(t, a.SaveResult(ctx, result))

	got, err := a.GetResult(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, result, got)

	result.BPM = 138
	result.Key = domain.UnknownKey
	require.NoError(t, a.SaveResult(ctx, result))
	got, err = a.GetResult(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 138, got.BPM)
	assert.False(t, got.Key.Known())
}

func TestAdapter_LibraryStats(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	bpms, err := a.AnalyzedBPMs(ctx)
	require.NoError(t, err)
	assert.Empty(t, bpms)

	for i, raw := range []float64{0.2, 0.5, 0.8} {
		id := string(rune('a' + i))
		require.NoError(t, a.SaveResult(ctx, domain.NormalizedResult{
			TrackID: id, BPM: 120 + i, RawEnergy: raw, Key: domain.UnknownKey, SourceID: "s" + id,
		}))
	}

	bpms, err = a.AnalyzedBPMs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{120, 121, 122}, bpms)

	others, err := a.RawEnergies(ctx, "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{0.2, 0.8}, others)

	all, err := a.RawEnergies(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	index, err := a.RawEnergyIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 0.2, "b": 0.5, "c": 0.8}, index)

	require.NoError(t, a.UpdateEnergies(ctx, map[string]int{"a": 0, "b": 5, "c": 10}))
	got, err := a.GetResult(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Energy)
}

func TestNewAdapterRejectsBadPath(t *testing.T) {
	_, err := NewAdapter("/nonexistent-dir/for/sure/cratedigger.db")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
