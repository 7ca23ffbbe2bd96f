// Package worker runs the job pipeline: claim one queued job, gate the
// image, optionally describe the dish, resolve nutrition, and persist a
// terminal state. Every claimed job reaches exactly one terminal call.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/infinity-samurai/food-ai/internal/blob"
	"github.com/infinity-samurai/food-ai/internal/config"
	"github.com/infinity-samurai/food-ai/internal/models"
	"github.com/infinity-samurai/food-ai/internal/nutrition"
	"github.com/infinity-samurai/food-ai/internal/storage"
	"github.com/infinity-samurai/food-ai/internal/vision"
)

// Store errors back off up to this long instead of tight-loop spinning.
const maxBackoff = 5 * time.Second

// Worker polls the job store and processes claimed jobs one at a time per
// loop. Multiple loops (or processes) coordinate only through the store's
// atomic claim.
type Worker struct {
	cfg       config.Config
	jobs      *storage.JobRepository
	blobs     blob.Store
	gate      vision.Gate
	describer vision.Describer
	catalog   []nutrition.Entry
	log       *slog.Logger

	// Candidate labels for gate-based dish selection, one per catalog
	// entry, precomputed once.
	dishLabels []string
}

// New assembles a worker from its collaborators.
func New(cfg config.Config, jobs *storage.JobRepository, blobs blob.Store, gate vision.Gate, describer vision.Describer, catalog []nutrition.Entry, log *slog.Logger) *Worker {
	labels := make([]string, len(catalog))
	for i, e := range catalog {
		// Names over aliases for stability.
		labels[i] = "a photo of " + e.Name
	}
	return &Worker{
		cfg:        cfg,
		jobs:       jobs,
		blobs:      blobs,
		gate:       gate,
		describer:  describer,
		catalog:    catalog,
		log:        log,
		dishLabels: labels,
	}
}

// Run starts the configured number of polling loops and blocks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	n := w.cfg.WorkerConcurrency
	if n < 1 {
		n = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	backoff := w.cfg.PollInterval

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			// Store-level trouble is distinct from job failure: back off
			// and retry rather than spinning.
			w.log.Error("claim failed", "error", err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = w.cfg.PollInterval

		if job == nil {
			if !sleep(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		w.process(ctx, job)
	}
}

// process takes one claimed job to a terminal state. A single job's failure
// (including panics) never terminates the loop.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	start := time.Now()
	w.log.Info("job claimed", "job", job.ID, "key", job.ImageKey, "source", job.ImageSource)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
			w.fail(ctx, job.ID, msg)
		}
	}()

	report, err := w.analyze(ctx, job)
	if err != nil {
		w.fail(ctx, job.ID, err.Error())
		return
	}

	if err := w.jobs.MarkDone(ctx, job.ID, report); err != nil {
		w.log.Error("mark done failed", "job", job.ID, "error", err)
		return
	}
	w.log.Info("job done", "job", job.ID, "is_food", report.IsFood, "elapsed", time.Since(start))
}

func (w *Worker) fail(ctx context.Context, jobID, msg string) {
	w.log.Error("job failed", "job", jobID, "error", msg)
	if err := w.jobs.MarkFailed(ctx, jobID, msg); err != nil {
		w.log.Error("mark failed failed", "job", jobID, "error", err)
	}
}

// sleep waits for d or until ctx is cancelled, reporting whether the caller
// should keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
