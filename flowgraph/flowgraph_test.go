package flowgraph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/corerunner"
)

type FlowGraphTestSuite struct {
	suite.Suite
}

func TestFlowGraphTestSuite(t *testing.T) {
	suite.Run(t, new(FlowGraphTestSuite))
}

func (ts *FlowGraphTestSuite) newScheduler() (*corerunner.Scheduler, corerunner.WorkgroupID) {
	sched := corerunner.NewScheduler(corerunner.Config{})
	group := sched.CreateGroup(0, 4, 0)
	sched.BeginExecution(nil, nil)
	return sched, group
}

func (ts *FlowGraphTestSuite) TestLinearChainRunsInOrder() {
	sched, group := ts.newScheduler()
	defer sched.EndExecution()

	g := New(group)
	n1 := g.CreateNode()
	n2 := g.CreateNode()
	n3 := g.CreateNode()
	g.Connect(n1, n2)
	g.Connect(n2, n3)

	var mu sync.Mutex
	var order []string
	record := func(name string) corerunner.WorkItem {
		return func(ctx *corerunner.TaskContext) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	g.Add(n1, record("n1"))
	g.Add(n2, record("n2"))
	g.Add(n3, record("n3"))

	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		g.Start(ctx)
	})
	g.Wait()

	ts.Equal([]string{"n1", "n2", "n3"}, order)
}

func (ts *FlowGraphTestSuite) TestEmptyNodePropagatesCompletion() {
	sched, group := ts.newScheduler()
	defer sched.EndExecution()

	g := New(group)
	empty := g.CreateNode()
	after := g.CreateNode()
	g.Connect(empty, after)

	ran := make(chan struct{})
	g.Add(after, func(ctx *corerunner.TaskContext) {
		close(ran)
	})

	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		g.Start(ctx)
	})
	g.Wait()

	select {
	case <-ran:
	default:
		ts.Fail("successor of empty node never ran")
	}
}

func (ts *FlowGraphTestSuite) TestFanInWaitsForAllPredecessors() {
	sched, group := ts.newScheduler()
	defer sched.EndExecution()

	g := New(group)
	a := g.CreateNode()
	b := g.CreateNode()
	join := g.CreateNode()
	g.Connect(a, join)
	g.Connect(b, join)

	var aDone, bDone bool
	var mu sync.Mutex
	g.Add(a, func(ctx *corerunner.TaskContext) {
		mu.Lock()
		aDone = true
		mu.Unlock()
	})
	g.Add(b, func(ctx *corerunner.TaskContext) {
		mu.Lock()
		bDone = true
		mu.Unlock()
	})
	g.Add(join, func(ctx *corerunner.TaskContext) {
		mu.Lock()
		defer mu.Unlock()
		ts.True(aDone)
		ts.True(bDone)
	})

	sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
		g.Start(ctx)
	})
	g.Wait()
}

func (ts *FlowGraphTestSuite) TestRerunAfterPriorCompletion() {
	sched, group := ts.newScheduler()
	defer sched.EndExecution()

	g := New(group)
	n1 := g.CreateNode()
	var runs int
	var mu sync.Mutex
	g.Add(n1, func(ctx *corerunner.TaskContext) {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	for i := 0; i < 2; i++ {
		sched.Submit(nil, group, func(ctx *corerunner.TaskContext) {
			g.Start(ctx)
		})
		g.Wait()
	}

	ts.Equal(2, runs)
}

func (ts *FlowGraphTestSuite) TestRemoveThenAddReusesSlot() {
	sched, group := ts.newScheduler()
	defer sched.EndExecution()

	g := New(group)
	n1 := g.CreateNode()
	t1 := g.Add(n1, func(ctx *corerunner.TaskContext) {})
	g.Remove(n1, t1)
	t2 := g.Add(n1, func(ctx *corerunner.TaskContext) {})

	ts.Equal(t1, t2)
}
