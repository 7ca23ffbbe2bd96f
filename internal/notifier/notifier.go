// Package notifier is a read-only projection of job store state for
// push-style delivery. It polls on behalf of each observing client and
// never touches the worker or mutates anything.
package notifier

import (
	"context"
	"time"

	"github.com/infinity-samurai/food-ai/internal/models"
	"github.com/infinity-samurai/food-ai/internal/storage"
)

// DefaultInterval is the recommended snapshot cadence.
const DefaultInterval = 500 * time.Millisecond

// Snapshot is one observed job state. Err is non-nil only for lookup
// problems (unknown id, store unreachable); job-level failures arrive as a
// failed-status Job.
type Snapshot struct {
	Job *models.Job
	Err error
}

// Notifier produces status snapshot streams from the job store.
type Notifier struct {
	jobs     *storage.JobRepository
	interval time.Duration
}

// New creates a Notifier polling at the given cadence; zero or negative
// means DefaultInterval.
func New(jobs *storage.JobRepository, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Notifier{jobs: jobs, interval: interval}
}

// Watch streams snapshots for one job: the current state immediately, then
// one per tick, closing after the first terminal snapshot, a lookup error,
// or ctx cancellation. Because it only ever reads current state, observers
// see a monotonically non-decreasing status progression.
func (n *Notifier) Watch(ctx context.Context, jobID string) <-chan Snapshot {
	out := make(chan Snapshot)

	go func() {
		defer close(out)

		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		for {
			job, err := n.jobs.GetByID(ctx, jobID)
			if err != nil {
				select {
				case out <- Snapshot{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- Snapshot{Job: job}:
			case <-ctx.Done():
				return
			}

			if job.Terminal() {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
