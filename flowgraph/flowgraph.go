// Package flowgraph is a thin DAG façade over corerunner: nodes hold a bag
// of tasks, edges mean "run after", and Start submits every root node's
// tasks, cascading through the graph as each node's tasks all finish.
package flowgraph

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/go-foundations/corerunner"
)

// NodeID identifies a node. Generated with google/uuid so graphs built by
// independent components never collide, unlike a process-local counter.
type NodeID uuid.UUID

// TaskID identifies a task within a single node; stable across Remove/Add
// slot reuse only for the lifetime of that slot.
type TaskID int

type task struct {
	work  corerunner.WorkItem
	freed bool
}

type node struct {
	tasks []task

	successors   []NodeID
	predecessors int

	pendingTasks atomic.Int64
	pendingPreds atomic.Int64
}

// FlowGraph is a reusable DAG of task_nodes. The zero value is not usable;
// use New.
type FlowGraph struct {
	group corerunner.WorkgroupID

	mu    sync.Mutex
	nodes map[NodeID]*node
	order []NodeID // insertion order, for deterministic iteration

	running        atomic.Bool
	remainingNodes atomic.Int64
	done           chan struct{}
	doneMu         sync.Mutex
}

// New creates an empty flow graph whose tasks are submitted under group.
func New(group corerunner.WorkgroupID) *FlowGraph {
	return &FlowGraph{
		group: group,
		nodes: make(map[NodeID]*node),
	}
}

// CreateNode adds an empty node to the graph and returns its id.
func (g *FlowGraph) CreateNode() NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := NodeID(uuid.New())
	g.nodes[id] = &node{}
	g.order = append(g.order, id)
	return id
}

// Add appends work as a new task in node and returns its task id within
// that node.
func (g *FlowGraph) Add(n NodeID, work corerunner.WorkItem) TaskID {
	g.mu.Lock()
	defer g.mu.Unlock()

	nd := g.nodes[n]
	// Reuse a freed slot if one is available so TaskIDs stay stable across
	// a Remove followed by an Add.
	for i, t := range nd.tasks {
		if t.freed {
			nd.tasks[i] = task{work: work}
			return TaskID(i)
		}
	}
	nd.tasks = append(nd.tasks, task{work: work})
	return TaskID(len(nd.tasks) - 1)
}

// Remove marks task as free for reuse by a later Add; it is not executed by
// any subsequent Start on this topology.
func (g *FlowGraph) Remove(n NodeID, t TaskID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	nd := g.nodes[n]
	if int(t) < 0 || int(t) >= len(nd.tasks) {
		return
	}
	nd.tasks[t] = task{freed: true}
}

// Connect adds the edge from -> to: to does not start until every one of
// its predecessors' tasks have completed.
func (g *FlowGraph) Connect(from, to NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[from].successors = append(g.nodes[from].successors, to)
	g.nodes[to].predecessors++
}

// roots returns every node with no incoming edges.
func (g *FlowGraph) roots() []NodeID {
	var roots []NodeID
	for _, id := range g.order {
		if g.nodes[id].predecessors == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Start resets every node's per-run counters and submits every root node's
// tasks. Safe to call again once a prior run has finished: the topology and
// task lists are untouched, only the pending counters are reset.
func (g *FlowGraph) Start(ctx *corerunner.TaskContext) {
	g.mu.Lock()
	for _, id := range g.order {
		nd := g.nodes[id]
		nd.pendingPreds.Store(int64(nd.predecessors))
	}
	roots := g.roots()
	total := len(g.order)
	g.mu.Unlock()

	g.doneMu.Lock()
	g.done = make(chan struct{})
	g.doneMu.Unlock()
	g.running.Store(true)
	g.remainingNodes.Store(int64(total))

	if total == 0 {
		g.finish()
		return
	}
	for _, id := range roots {
		g.submitNode(ctx, id)
	}
}

// submitNode submits every task in node id, or — if it has none —
// immediately propagates completion to its successors (an empty node still
// satisfies its successors' incoming-edge counters).
func (g *FlowGraph) submitNode(ctx *corerunner.TaskContext, id NodeID) {
	g.mu.Lock()
	nd := g.nodes[id]
	live := make([]corerunner.WorkItem, 0, len(nd.tasks))
	for _, t := range nd.tasks {
		if !t.freed {
			live = append(live, t.work)
		}
	}
	nd.pendingTasks.Store(int64(len(live)))
	g.mu.Unlock()

	if len(live) == 0 {
		g.onNodeComplete(ctx, id)
		return
	}

	sched := ctx.Scheduler()
	for _, work := range live {
		work := work
		sched.Submit(ctx, g.group, func(wc *corerunner.TaskContext) {
			work(wc)
			g.onTaskComplete(wc, id)
		})
	}
}

// onTaskComplete decrements id's pending-task counter; once it reaches
// zero, the node is complete and its successors are notified.
func (g *FlowGraph) onTaskComplete(ctx *corerunner.TaskContext, id NodeID) {
	g.mu.Lock()
	nd := g.nodes[id]
	g.mu.Unlock()

	if nd.pendingTasks.Add(-1) == 0 {
		g.onNodeComplete(ctx, id)
	}
}

// onNodeComplete decrements every successor's pending-predecessor counter,
// submitting any successor that reaches zero, then marks id itself as
// finished. Called exactly once per node per run — either immediately for
// an empty node, or when its last task completes — so decrementing
// remainingNodes here gives an exact run-complete signal with no separate
// whole-graph scan.
func (g *FlowGraph) onNodeComplete(ctx *corerunner.TaskContext, id NodeID) {
	g.mu.Lock()
	successors := append([]NodeID(nil), g.nodes[id].successors...)
	g.mu.Unlock()

	for _, succ := range successors {
		g.mu.Lock()
		nd := g.nodes[succ]
		g.mu.Unlock()
		if nd.pendingPreds.Add(-1) == 0 {
			g.submitNode(ctx, succ)
		}
	}

	if g.remainingNodes.Add(-1) == 0 {
		g.finish()
	}
}

func (g *FlowGraph) finish() {
	if g.running.CompareAndSwap(true, false) {
		g.doneMu.Lock()
		close(g.done)
		g.doneMu.Unlock()
	}
}

// Wait blocks the calling thread until the current run's done semaphore is
// signalled.
func (g *FlowGraph) Wait() {
	g.doneMu.Lock()
	ch := g.done
	g.doneMu.Unlock()
	<-ch
}

// CooperativeWait busy-works on ctx's worker while waiting for the current
// run to finish, instead of blocking outright.
func (g *FlowGraph) CooperativeWait(ctx *corerunner.TaskContext) {
	g.doneMu.Lock()
	ch := g.done
	g.doneMu.Unlock()
	ctx.BusyWait(func() bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	})
}
