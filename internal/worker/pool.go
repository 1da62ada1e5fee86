// Package worker runs queued analysis jobs in the background, one at a time.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Request is a queued job.
type Request struct {
	JobID string
}

// Stats is a snapshot of queue occupancy.
type Stats struct {
	Queued int  `json:"queued"`
	Active bool `json:"active"`
}

// Pool is a bounded job queue. Jobs run in arrival order and a single-permit
// semaphore keeps at most one job active regardless of the worker count.
type Pool struct {
	runner Runner
	jobs   chan Request
	active *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger

	queued  atomic.Int64
	running atomic.Bool

	mu     sync.Mutex // guards closed and sends on jobs
	closed bool
}

// NewPool creates a pool with the given queue capacity.
func NewPool(runner Runner, queueSize int, logger *slog.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		runner: runner,
		jobs:   make(chan Request, queueSize),
		active: semaphore.NewWeighted(1),
		logger: logger.With("component", "worker"),
	}
}

// Start launches the worker goroutines. They exit when ctx ends or Stop is
// called.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx)
		}()
	}
}

// Stop closes the queue and waits for the workers. Requests still queued are
// dropped; cancel the Start context to interrupt the running job.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a job without blocking.
func (p *Pool) Submit(req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrQueueFull
	}
	select {
	case p.jobs <- req:
		p.queued.Add(1)
		p.logger.Info("job queued", "job_id", req.JobID, "queued", p.queued.Load())
		return nil
	default:
		p.logger.Warn("queue full, rejecting job", "job_id", req.JobID)
		return domain.ErrQueueFull
	}
}

// Stats reports queue length and whether a job is running.
func (p *Pool) Stats() Stats {
	return Stats{Queued: int(p.queued.Load()), Active: p.running.Load()}
}

func (p *Pool) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.jobs:
			if !ok {
				return
			}
			p.queued.Add(-1)
			if !p.process(ctx, req) {
				return
			}
		}
	}
}

// process runs one request under the semaphore. It returns false when ctx
// ended before the job could start.
func (p *Pool) process(ctx context.Context, req Request) bool {
	if err := p.active.Acquire(ctx, 1); err != nil {
		p.logger.Warn("job not started, shutting down", "job_id", req.JobID)
		return false
	}
	defer p.active.Release(1)

	p.running.Store(true)
	defer p.running.Store(false)

	p.logger.Info("job started", "job_id", req.JobID)
	if err := p.runner.Run(ctx, req.JobID); err != nil {
		p.logger.Error("job failed", "job_id", req.JobID, "error", err)
		return true
	}
	p.logger.Info("job finished", "job_id", req.JobID)
	return true
}

// Enqueue adapts Submit to ports.JobQueue.
func (p *Pool) Enqueue(_ context.Context, jobID string) error {
	return p.Submit(Request{JobID: jobID})
}
