// Package workerpool provides the bounded parallel fan-out used by
// insert's per-partition upload step (spec.md §4.5, §5).
//
// This is deliberately lighter than a long-lived worker pool: spec.md §5
// says insert uses a local partition map per call with no state across
// calls, so there is no Start/Stop lifecycle, no persistent goroutines,
// and no background metrics-ticker — each call to Run starts one
// goroutine per task, with at most maxWorkers running at once, drains
// one batch of tasks, and returns. The
// per-task logging texture (worker id, duration, success/failure
// fields) is kept from the original pool design.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of fan-out work: a label for logging and the
// function to execute.
type Task struct {
	Label   string
	Execute func(ctx context.Context) error
}

// Stats summarizes one Run call.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Duration  time.Duration
}

// Run executes tasks with at most maxWorkers running at once and blocks
// until every task has returned; ctx is passed to each task, and Run
// does not itself stop early when ctx is cancelled. It returns the first error
// encountered (spec.md §4.5: "if one bucket permanently fails, the
// caller receives that exception") alongside stats for observability,
// but every task still runs to completion — there is no short-circuit
// cancellation of sibling tasks on a single failure, since partial
// uploads that already started are not rolled back either way.
func Run(ctx context.Context, logger *logrus.Logger, maxWorkers int, tasks []Task) (Stats, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	start := time.Now()

	var completed, failed int64
	var firstErr error
	var firstErrOnce sync.Once

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, task := range tasks {
		task := task
		workerID := i % maxWorkers
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			taskStart := time.Now()
			err := task.Execute(ctx)
			duration := time.Since(taskStart)

			fields := logrus.Fields{
				"worker_id": workerID,
				"task":      task.Label,
				"duration":  duration,
			}
			if err != nil {
				atomic.AddInt64(&failed, 1)
				logger.WithFields(fields).WithError(err).Error("fan-out task failed")
				firstErrOnce.Do(func() { firstErr = err })
				return
			}
			atomic.AddInt64(&completed, 1)
			logger.WithFields(fields).Debug("fan-out task completed")
		}()
	}
	wg.Wait()

	stats := Stats{
		Total:     len(tasks),
		Completed: int(atomic.LoadInt64(&completed)),
		Failed:    int(atomic.LoadInt64(&failed)),
		Duration:  time.Since(start),
	}
	return stats, firstErr
}
