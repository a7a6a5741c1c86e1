package autoparallel

import (
	"sync/atomic"

	"github.com/go-foundations/corerunner"
)

// sharedState is the heap-allocated state every spawned auto_range shares:
// the body and the outstanding-spawn counter the top-level caller busy-waits
// on.
type sharedState struct {
	body   rangeCallback
	spawns atomic.Int64
}

// autoRange is one pending (or executing) subrange plus the adaptive
// bookkeeping auto_range::execute in the original carries: the depth
// budget it was given, divisorLog2 (the log2 of how finely a further split
// should slice it), and spawnWorker — the worker that submitted this
// particular range, recorded fresh at every split so a range's own
// steal-detection compares against the worker that actually spawned it,
// not some other ancestor's.
type autoRange struct {
	state       *sharedState
	r           indexRange
	maxDepth    uint8
	divisorLog2 uint8
	spawnWorker corerunner.WorkerID
}

func (a autoRange) divisor() int { return 1 << a.divisorLog2 }

func (a autoRange) isDivisible(grainSize int) bool {
	return a.r.size() > grainSize<<a.divisorLog2
}

func (a autoRange) executeSequential(ctx *corerunner.TaskContext) {
	a.state.body(a.r.start, a.r.end, ctx)
}

// execute is the adaptive split-or-run step: a stolen range gets a
// slightly larger depth budget and a coarser divisor (so it doesn't keep
// over-splitting once it's already found an idle worker), then the range
// pool is filled by alternating back/front splits and drained, spawning a
// new task for every front range the pool accumulates beyond the one it
// executes in place.
func (a autoRange) execute(ctx *corerunner.TaskContext, traits Traits) {
	executionWorker := ctx.Worker()
	isStolen := executionWorker != a.spawnWorker

	maxDepth := a.maxDepth
	divisorLog2 := a.divisorLog2
	if isStolen {
		if maxDepth < traits.MaxDepth {
			maxDepth += traits.DepthIncrement
			if maxDepth > traits.MaxDepth {
				maxDepth = traits.MaxDepth
			}
		}
		const divisorIncrement = 2
		const maxDivisorLog2 = 31
		divisorLog2 += divisorIncrement
		if divisorLog2 > maxDivisorLog2 {
			divisorLog2 = maxDivisorLog2
		}
	}

	if !a.isDivisible(traits.GrainSize) || maxDepth == 0 {
		a.executeSequential(ctx)
		return
	}

	pool := newRangePool(int(traits.RangePoolCapacity), a.r)
	granularity := traits.GrainSize << divisorLog2
	sched := ctx.Scheduler()

	for !pool.empty() {
		pool.splitToFill(maxDepth, granularity)

		hasDemand := isStolen || traits.GrainSize > 1
		if hasDemand && pool.size > 1 {
			workRange := pool.front()
			workDepth := pool.frontDepth()
			pool.popFront()

			childDivisor := divisorLog2
			if childDivisor > 0 {
				childDivisor--
			}

			spawned := autoRange{
				state:       a.state,
				r:           workRange,
				maxDepth:    workDepth,
				divisorLog2: childDivisor,
				spawnWorker: executionWorker,
			}
			a.state.spawns.Add(1)
			sched.SubmitSelf(ctx, func(wc *corerunner.TaskContext) {
				spawned.execute(wc, traits)
				a.state.spawns.Add(-1)
			})
			continue
		}

		back := pool.back()
		backDepth := pool.backDepth()
		pool.popBack()

		seq := autoRange{state: a.state, r: back, maxDepth: backDepth, divisorLog2: divisorLog2, spawnWorker: executionWorker}
		seq.executeSequential(ctx)
	}
}
