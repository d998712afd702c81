package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

type Job func(ctx context.Context) error

// Runner runs jobs periodically until its context is cancelled.
type Runner struct {
	ctx    context.Context
	logger core.Logger
	wg     sync.WaitGroup
}

func New(ctx context.Context, logger core.Logger) *Runner {
	return &Runner{ctx: ctx, logger: logger}
}

// Every runs fn every interval. A run still in progress delays the next tick.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.run(name, fn)
			}
		}
	}()
}

func (r *Runner) run(name string, fn Job) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			jobErrors.WithLabelValues(name).Inc()
			r.logger.Error("job panicked", errors.Errorf("%s: %v", name, rec))
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if err := fn(r.ctx); err != nil && r.ctx.Err() == nil {
		jobErrors.WithLabelValues(name).Inc()
		r.logger.Error("job failed", errors.Wrap(err, name))
	}
}

// Wait blocks until every job loop returned, after the runner's context is done.
func (r *Runner) Wait() { r.wg.Wait() }
