package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/worker"
)

type recordingRunner struct {
	mu      sync.Mutex
	order   []string
	current atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	err     error
	done    chan string
}

func (r *recordingRunner) Run(ctx context.Context, jobID string) error {
	n := r.current.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(r.delay)
	r.current.Add(-1)

	r.mu.Lock()
	r.order = append(r.order, jobID)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- jobID
	}
	return r.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, done <-chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestPoolRunsOneJobAtATime(t *testing.T) {
	runner := &recordingRunner{delay: 10 * time.Millisecond, done: make(chan string, 5)}
	pool := worker.NewPool(runner, 10, quiet())
	pool.Start(context.Background(), 3)
	defer pool.Stop()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, pool.Submit(worker.Request{JobID: id}))
	}
	waitFor(t, runner.done, 5)

	assert.Equal(t, int32(1), runner.peak.Load())
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Len(t, runner.order, 5)
}

func TestPoolPreservesArrivalOrderWithOneWorker(t *testing.T) {
	runner := &recordingRunner{done: make(chan string, 3)}
	pool := worker.NewPool(runner, 10, quiet())
	pool.Start(context.Background(), 1)
	defer pool.Stop()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, pool.Submit(worker.Request{JobID: id}))
	}
	waitFor(t, runner.done, 3)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, runner.order)
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	pool := worker.NewPool(&recordingRunner{}, 1, quiet())

	require.NoError(t, pool.Submit(worker.Request{JobID: "a"}))
	err := pool.Submit(worker.Request{JobID: "b"})
	assert.ErrorIs(t, err, domain.ErrQueueFull)
	assert.Equal(t, 1, pool.Stats().Queued)
}

func TestSubmitAfterStop(t *testing.T) {
	pool := worker.NewPool(&recordingRunner{}, 1, quiet())
	pool.Start(context.Background(), 1)
	pool.Stop()

	assert.ErrorIs(t, pool.Submit(worker.Request{JobID: "late"}), domain.ErrQueueFull)
}

func TestRunnerErrorDoesNotStopPool(t *testing.T) {
	runner := &recordingRunner{err: errors.New("boom"), done: make(chan string, 2)}
	pool := worker.NewPool(runner, 4, quiet())
	pool.Start(context.Background(), 1)
	defer pool.Stop()

	require.NoError(t, pool.Submit(worker.Request{JobID: "a"}))
	require.NoError(t, pool.Submit(worker.Request{JobID: "b"}))
	waitFor(t, runner.done, 2)
}

func TestCanceledContextStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(&recordingRunner{}, 1, quiet())
	pool.Start(ctx, 2)
	cancel()

	finished := make(chan struct{})
	go func() {
		pool.Stop()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit after cancel")
	}
}
