// Package scheduler implements the periodic background-task runner from
// §4.11 (C11), grounded on the ticker-plus-select loop used throughout
// the teacher's syncmanager package. It runs a task on a fixed interval
// with optional jitter on the first tick, warns when a cycle runs long,
// and never lets a task failure kill the loop.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
)

// Task is one unit of periodic work. It receives a context scoped to a
// single cycle's timeout.
type Task func(ctx context.Context) error

// Scheduler runs Task on Interval, applying Jitter (a fraction of
// Interval, e.g. 0.2 for 20%) as a one-time random delay before the
// first tick so many schedulers started together don't all fire in
// lockstep.
type Scheduler struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Jitter   float64
	Task     Task
}

// Run blocks until ctx is canceled, invoking Task every Interval. Task
// panics are not recovered — callers that need that should recover
// inside their own Task — but a returned error is logged and the loop
// continues on the next tick, per §7 ("background workers never
// terminate on task failure; they log and resume on the next tick").
func (s *Scheduler) Run(ctx context.Context) {
	if s.Jitter > 0 {
		delay := time.Duration(rand.Float64() * s.Jitter * float64(s.Interval))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	logging.Info("scheduler[%s]: started, interval=%s", s.Name, s.Interval)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			logging.Info("scheduler[%s]: stopped", s.Name)
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	cycleCtx := ctx
	var cancel context.CancelFunc
	if s.Timeout > 0 {
		cycleCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.Task(cycleCtx)
	elapsed := time.Since(start)

	if err != nil {
		logging.Error("scheduler[%s]: cycle failed after %s: %v", s.Name, elapsed, err)
	}
	if elapsed > s.Interval {
		logging.Warn("scheduler[%s]: cycle took %s, longer than interval %s", s.Name, elapsed, s.Interval)
	}
	if s.Timeout > 0 && elapsed > s.Timeout {
		logging.Warn("scheduler[%s]: cycle took %s, exceeded timeout %s", s.Name, elapsed, s.Timeout)
	}
}
