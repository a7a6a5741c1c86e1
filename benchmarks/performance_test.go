package benchmarks

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-foundations/corerunner"
	"github.com/go-foundations/corerunner/batch"
)

func benchmarkProcessor(ctx *corerunner.TaskContext, job batch.Job[string]) (string, error) {
	return strings.ToUpper(job.Data), nil
}

func makeJobs(n int) []batch.Job[string] {
	jobs := make([]batch.Job[string], n)
	for i := 0; i < n; i++ {
		jobs[i] = batch.Job[string]{
			ID:       fmt.Sprintf("job_%d", i),
			Data:     fmt.Sprintf("data_%d", i),
			Priority: i % 3,
		}
	}
	return jobs
}

// BenchmarkWorkerCounts measures throughput of batch.Runner across worker
// counts, exercising the scheduler's own submission/work-stealing path
// instead of a hand-rolled distribution strategy.
func BenchmarkWorkerCounts(b *testing.B) {
	for _, numWorkers := range []int{1, 2, 4, 8, 16} {
		b.Run(fmt.Sprintf("Workers_%d", numWorkers), func(b *testing.B) {
			runner := batch.NewRunner[string, string](batch.Config{NumWorkers: numWorkers}, benchmarkProcessor)
			jobs := makeJobs(100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := runner.Run(jobs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkJobSizes measures throughput across job-set sizes at a fixed
// worker count.
func BenchmarkJobSizes(b *testing.B) {
	for _, jobSize := range []int{10, 100, 1000, 10000} {
		b.Run(fmt.Sprintf("Jobs_%d", jobSize), func(b *testing.B) {
			runner := batch.NewRunner[string, string](batch.Config{NumWorkers: 4}, benchmarkProcessor)
			jobs := makeJobs(jobSize)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := runner.Run(jobs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkProcessingTimes measures how per-job work duration affects
// overall throughput — the point at which scheduling overhead stops
// dominating wall-clock time.
func BenchmarkProcessingTimes(b *testing.B) {
	durations := []time.Duration{0, time.Microsecond, 10 * time.Microsecond, 100 * time.Microsecond, time.Millisecond}

	for _, procTime := range durations {
		b.Run(fmt.Sprintf("ProcTime_%v", procTime), func(b *testing.B) {
			runner := batch.NewRunner[string, string](batch.Config{NumWorkers: 4}, func(ctx *corerunner.TaskContext, job batch.Job[string]) (string, error) {
				if procTime > 0 {
					time.Sleep(procTime)
				}
				return strings.ToUpper(job.Data), nil
			})
			jobs := makeJobs(100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := runner.Run(jobs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPriorityRun measures the overhead RunPriority's up-front sort
// adds over Run for the same job set.
func BenchmarkPriorityRun(b *testing.B) {
	runner := batch.NewRunner[string, string](batch.Config{NumWorkers: 4}, benchmarkProcessor)
	jobs := makeJobs(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := runner.RunPriority(jobs); err != nil {
			b.Fatal(err)
		}
	}
}
