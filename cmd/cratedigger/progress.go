package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// jobWatcher keeps the latest snapshot of every job it is told about. It
// never blocks the notifier, and a waiter always observes the final state.
type jobWatcher struct {
	mu      sync.Mutex
	latest  map[string]domain.AnalysisJob
	changed chan struct{}
}

func newJobWatcher() *jobWatcher {
	return &jobWatcher{
		latest:  make(map[string]domain.AnalysisJob),
		changed: make(chan struct{}, 1),
	}
}

func (w *jobWatcher) JobUpdated(job domain.AnalysisJob) {
	w.mu.Lock()
	w.latest[job.ID] = job
	w.mu.Unlock()
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *jobWatcher) snapshot(jobID string) (domain.AnalysisJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.latest[jobID]
	return job, ok
}

// wait calls onUpdate with each observed snapshot of jobID until the job
// reaches a terminal status or ctx ends.
func (w *jobWatcher) wait(ctx context.Context, jobID string, onUpdate func(domain.AnalysisJob)) (domain.AnalysisJob, error) {
	var last domain.AnalysisJob
	for {
		if job, ok := w.snapshot(jobID); ok {
			last = job
			onUpdate(job)
			if job.Status.Terminal() {
				return job, nil
			}
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-w.changed:
		}
	}
}

type progressRenderer interface {
	update(job domain.AnalysisJob)
	finish()
}

func newProgressRenderer(out io.Writer, total int) progressRenderer {
	if isTerminal(out) {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("analyzing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		)
		return &barRenderer{bar: bar}
	}
	return &lineRenderer{out: out, processed: -1}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type barRenderer struct {
	bar *progressbar.ProgressBar
}

func (r *barRenderer) update(job domain.AnalysisJob) {
	if job.TotalTracks > 0 {
		r.bar.ChangeMax(job.TotalTracks)
	}
	if job.Failed > 0 {
		r.bar.Describe(fmt.Sprintf("analyzing (%d failed)", job.Failed))
	}
	_ = r.bar.Set(job.Processed)
}

func (r *barRenderer) finish() {
	_ = r.bar.Finish()
}

// lineRenderer prints one line per counter change for pipes and log files.
type lineRenderer struct {
	out       io.Writer
	processed int
	status    domain.JobStatus
}

func (r *lineRenderer) update(job domain.AnalysisJob) {
	if job.Processed == r.processed && job.Status == r.status {
		return
	}
	r.processed = job.Processed
	r.status = job.Status
	fmt.Fprintf(r.out, "%s: %d/%d processed, %d failed (%d%%)\n",
		job.Status, job.Processed, job.TotalTracks, job.Failed, job.Progress())
}

func (r *lineRenderer) finish() {}
