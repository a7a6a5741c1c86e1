// Package batch is a convenience layer over corerunner for the common case
// of processing a homogeneous slice of jobs and collecting their results.
// Load balancing comes entirely from the scheduler's own work-stealing
// submit path; batch itself owns no channels or goroutines.
package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-foundations/corerunner"
)

// Job is a unit of work to be processed.
type Job[T any] struct {
	ID       string
	Data     T
	Priority int
	Created  time.Time
}

// Result wraps the processing outcome of a job.
type Result[R any] struct {
	JobID     string
	Data      R
	Error     error
	Worker    corerunner.WorkerID
	Started   time.Time
	Completed time.Time
	Duration  time.Duration
}

// Processor processes a single job. ctx identifies which scheduler worker
// is running it, should the processor want to make worker-aware decisions.
type Processor[T any, R any] func(ctx *corerunner.TaskContext, job Job[T]) (R, error)

// Config configures a Runner.
type Config struct {
	NumWorkers int
	MaxRetries int
	Metrics    corerunner.MetricsSink // optional, shared with the scheduler
}

// Metrics summarizes one Run call.
type Metrics struct {
	TotalJobs       int
	ProcessedJobs   int
	FailedJobs      int
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// Runner processes jobs through a dedicated, single-workgroup scheduler: one
// Run call owns the scheduler's full lifecycle (BeginExecution..EndExecution).
type Runner[T any, R any] struct {
	cfg       Config
	processor Processor[T, R]
}

// NewRunner creates a Runner. NumWorkers defaults to 4 if unset.
func NewRunner[T any, R any](cfg Config, processor Processor[T, R]) *Runner[T, R] {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	return &Runner[T, R]{cfg: cfg, processor: processor}
}

// Run submits every job to a fresh scheduler and blocks until all have
// completed, returning results in completion order (not submission order —
// callers that need stable order should key on Result.JobID).
func (r *Runner[T, R]) Run(jobs []Job[T]) ([]Result[R], Metrics, error) {
	if r.processor == nil {
		return nil, Metrics{}, fmt.Errorf("batch: no processor configured")
	}
	if len(jobs) == 0 {
		return nil, Metrics{}, fmt.Errorf("batch: no jobs to process")
	}

	sched := corerunner.NewScheduler(corerunner.Config{Metrics: r.cfg.Metrics})
	group := sched.CreateGroup(0, uint32(r.cfg.NumWorkers), 0)

	var mu sync.Mutex
	results := make([]Result[R], 0, len(jobs))
	metrics := Metrics{TotalJobs: len(jobs)}
	started := time.Now()

	sched.BeginExecution(nil, nil)
	defer sched.EndExecution()

	for _, job := range jobs {
		job := job
		if job.Created.IsZero() {
			job.Created = time.Now()
		}
		// src is nil: Run is called from outside any worker goroutine, so
		// there is no "own worker" to cooperatively busy-work while probing.
		sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
			jobStart := time.Now()
			data, err := r.runWithRetries(ctx, job)
			completed := time.Now()

			mu.Lock()
			defer mu.Unlock()
			results = append(results, Result[R]{
				JobID:     job.ID,
				Data:      data,
				Error:     err,
				Worker:    ctx.Worker(),
				Started:   jobStart,
				Completed: completed,
				Duration:  completed.Sub(jobStart),
			})
			if err != nil {
				metrics.FailedJobs++
			} else {
				metrics.ProcessedJobs++
			}
		})
	}

	sched.WaitForTasks()

	metrics.TotalDuration = time.Since(started)
	if metrics.ProcessedJobs > 0 {
		metrics.AverageDuration = metrics.TotalDuration / time.Duration(metrics.ProcessedJobs)
	}
	return results, metrics, nil
}

func (r *Runner[T, R]) runWithRetries(ctx *corerunner.TaskContext, job Job[T]) (R, error) {
	var data R
	var err error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		data, err = r.processor(ctx, job)
		if err == nil {
			return data, nil
		}
		if attempt < r.cfg.MaxRetries {
			ctx.Scheduler().BusyWork(ctx) // do useful work instead of sleeping before retrying
		}
	}
	return data, err
}
