package batch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/corerunner"
)

type BatchTestSuite struct {
	suite.Suite
}

func TestBatchTestSuite(t *testing.T) {
	suite.Run(t, new(BatchTestSuite))
}

func (ts *BatchTestSuite) TestRunProcessesEveryJob() {
	runner := NewRunner[string, string](Config{NumWorkers: 4}, func(ctx *corerunner.TaskContext, job Job[string]) (string, error) {
		return strings.ToUpper(job.Data), nil
	})

	jobs := make([]Job[string], 0, 50)
	for i := 0; i < 50; i++ {
		jobs = append(jobs, Job[string]{ID: fmt.Sprintf("%d", i), Data: fmt.Sprintf("job-%d", i)})
	}

	results, metrics, err := runner.Run(jobs)
	ts.NoError(err)
	ts.Len(results, 50)
	ts.Equal(50, metrics.TotalJobs)
	ts.Equal(50, metrics.ProcessedJobs)
	ts.Equal(0, metrics.FailedJobs)

	byID := make(map[string]string, len(results))
	for _, r := range results {
		byID[r.JobID] = r.Data
	}
	ts.Equal("JOB-7", byID["7"])
}

func (ts *BatchTestSuite) TestRunRetriesFailedJobs() {
	var attempts int
	runner := NewRunner[int, int](Config{NumWorkers: 2, MaxRetries: 3}, func(ctx *corerunner.TaskContext, job Job[int]) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, fmt.Errorf("transient failure")
		}
		return job.Data * 2, nil
	})

	results, metrics, err := runner.Run([]Job[int]{{ID: "only", Data: 21}})
	ts.NoError(err)
	ts.Len(results, 1)
	ts.Equal(42, results[0].Data)
	ts.Equal(1, metrics.ProcessedJobs)
}

func (ts *BatchTestSuite) TestRunRejectsEmptyJobSet() {
	runner := NewRunner[int, int](Config{}, func(ctx *corerunner.TaskContext, job Job[int]) (int, error) {
		return job.Data, nil
	})
	_, _, err := runner.Run(nil)
	ts.Error(err)
}

func (ts *BatchTestSuite) TestRunPriorityOrdersHighestFirst() {
	var order []string
	runner := NewRunner[string, string](Config{NumWorkers: 1}, func(ctx *corerunner.TaskContext, job Job[string]) (string, error) {
		order = append(order, job.ID)
		return job.Data, nil
	})

	jobs := []Job[string]{
		{ID: "low", Data: "l", Priority: 1},
		{ID: "high", Data: "h", Priority: 10},
		{ID: "mid", Data: "m", Priority: 5},
	}

	results, _, err := runner.RunPriority(jobs)
	ts.NoError(err)
	ts.Len(results, 3)
	// A single worker drains its own queue FIFO, so submission order
	// (priority-sorted) determines execution order here.
	ts.Equal([]string{"high", "mid", "low"}, order)
}

func (ts *BatchTestSuite) TestPriorityQueuePopsHighestPriorityFirst() {
	pq := NewPriorityQueue[int]()
	pq.Push(Job[int]{ID: "a", Priority: 1})
	pq.Push(Job[int]{ID: "b", Priority: 9})
	pq.Push(Job[int]{ID: "c", Priority: 5})

	first, ok := pq.Pop()
	ts.True(ok)
	ts.Equal("b", first.ID)

	second, ok := pq.Pop()
	ts.True(ok)
	ts.Equal("c", second.ID)

	ts.Equal(1, pq.Len())
}
