package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic background work. It must respect ctx
// cancellation; errors are the job's own to log.
type Job func(ctx context.Context)

type job struct {
	name     string
	interval time.Duration
	run      Job
}

// Runner drives a set of named jobs, each on its own ticker, until the
// context is cancelled.
type Runner struct {
	logger *slog.Logger
	jobs   []job
}

func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Add registers a job to run every interval. Jobs do not fire
// immediately; the first run happens one interval after Run starts.
func (r *Runner) Add(name string, interval time.Duration, fn Job) {
	r.jobs = append(r.jobs, job{name: name, interval: interval, run: fn})
}

// Run blocks until ctx is cancelled, then waits for in-flight job runs
// to return.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range r.jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			r.logger.Info("job scheduled", "job", j.name, "interval", j.interval.String())

			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					j.run(ctx)
				case <-ctx.Done():
					r.logger.Info("job stopped", "job", j.name)
					return
				}
			}
		}(j)
	}
	wg.Wait()
}
