package autoparallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/corerunner"
)

type AutoParallelTestSuite struct {
	suite.Suite
}

func TestAutoParallelTestSuite(t *testing.T) {
	suite.Run(t, new(AutoParallelTestSuite))
}

func (ts *AutoParallelTestSuite) newScheduler(workers uint32) (*corerunner.Scheduler, corerunner.WorkgroupID) {
	sched := corerunner.NewScheduler(corerunner.Config{})
	group := sched.CreateGroup(0, workers, 0)
	return sched, group
}

func (ts *AutoParallelTestSuite) TestAutoParallelForDoublesEveryElement() {
	sched, group := ts.newScheduler(4)
	const n = 10000
	data := make([]int64, n)
	for i := range data {
		data[i] = int64(i)
	}

	done := make(chan struct{})
	sched.BeginExecution(nil, nil)

	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		AutoParallelFor(ctx, 0, n, func(i int, c *corerunner.TaskContext) {
			data[i] = data[i] * 2
		})
		close(done)
	})

	sched.WaitForTasks()
	<-done
	sched.EndExecution()

	for i := 0; i < n; i++ {
		ts.Equal(int64(i*2), data[i], "index %d", i)
	}
}

func (ts *AutoParallelTestSuite) TestAutoParallelForSumsOrderedRange() {
	sched, group := ts.newScheduler(4)
	var sum atomic.Int64
	done := make(chan struct{})

	sched.BeginExecution(nil, nil)
	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		AutoParallelFor(ctx, 0, 100, func(i int, c *corerunner.TaskContext) {
			sum.Add(int64(i))
		})
		close(done)
	})
	sched.WaitForTasks()
	<-done
	sched.EndExecution()

	ts.Equal(int64(4950), sum.Load())
}

func (ts *AutoParallelTestSuite) TestDefaultParallelForVisitsEveryElementOnce() {
	sched, group := ts.newScheduler(4)
	const n = 2000
	seen := make([]int32, n)
	done := make(chan struct{})

	sched.BeginExecution(nil, nil)
	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		DefaultParallelFor(ctx, 0, n, func(i int, c *corerunner.TaskContext) {
			atomic.AddInt32(&seen[i], 1)
		}, DefaultTraits{BatchesPerWorker: 4})
		close(done)
	})
	sched.WaitForTasks()
	<-done
	sched.EndExecution()

	for i, v := range seen {
		ts.Equal(int32(1), v, "index %d visited %d times", i, v)
	}
}

func (ts *AutoParallelTestSuite) TestAutoParallelForAcceptsRangeShapedBody() {
	sched, group := ts.newScheduler(4)
	const n = 5000
	seen := make([]int32, n)
	done := make(chan struct{})

	sched.BeginExecution(nil, nil)
	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		AutoParallelFor(ctx, 0, n, func(start, end int, c *corerunner.TaskContext) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		close(done)
	})
	sched.WaitForTasks()
	<-done
	sched.EndExecution()

	for i, v := range seen {
		ts.Equal(int32(1), v, "index %d visited %d times", i, v)
	}
}

func (ts *AutoParallelTestSuite) TestDefaultParallelForAcceptsRangeShapedBody() {
	sched, group := ts.newScheduler(4)
	const n = 2000
	seen := make([]int32, n)
	done := make(chan struct{})

	sched.BeginExecution(nil, nil)
	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		DefaultParallelFor(ctx, 0, n, func(start, end int, c *corerunner.TaskContext) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		}, DefaultTraits{BatchesPerWorker: 4})
		close(done)
	})
	sched.WaitForTasks()
	<-done
	sched.EndExecution()

	for i, v := range seen {
		ts.Equal(int32(1), v, "index %d visited %d times", i, v)
	}
}

func (ts *AutoParallelTestSuite) TestNestedAutoParallelForVisitsEveryElementOnce() {
	sched, group := ts.newScheduler(4)
	const outer, inner = 10, 1000
	var total atomic.Int64
	done := make(chan struct{})

	sched.BeginExecution(nil, nil)
	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		AutoParallelFor(ctx, 0, outer, func(o int, c *corerunner.TaskContext) {
			AutoParallelFor(c, 0, inner, func(i int, c2 *corerunner.TaskContext) {
				total.Add(1)
			})
		})
		close(done)
	})
	sched.WaitForTasks()
	<-done
	sched.EndExecution()

	ts.Equal(int64(outer*inner), total.Load())
}
