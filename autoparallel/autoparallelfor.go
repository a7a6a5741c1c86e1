package autoparallel

import (
	"math/bits"

	"github.com/go-foundations/corerunner"
)

// AutoParallelFor invokes body once for every i in [lo, hi), adaptively
// splitting the range across ctx's workgroup. body may be either a Body
// (func(int, *corerunner.TaskContext), called once per index) or a
// RangeBody (func(int, int, *corerunner.TaskContext), called once per leaf
// subrange) — whichever shape fits the caller's work better. A second,
// independent AutoParallelFor call never observes state left over from a
// prior one — sharedState is allocated fresh on every call.
func AutoParallelFor(ctx *corerunner.TaskContext, lo, hi int, body any, traits ...Traits) {
	fn := adaptBody(body)

	t := DefaultAutoTraits()
	if len(traits) > 0 {
		t = traits[0]
	}
	count := hi - lo
	if count <= 0 {
		return
	}
	if count <= t.SequentialThreshold {
		fn(lo, hi, ctx)
		return
	}

	sched := ctx.Scheduler()
	availableWorkers := int(sched.GetWorkerCount(ctx.Workgroup()))
	initialDivisor := availableWorkers * t.GrainSize
	if maxByGrain := count / t.GrainSize; maxByGrain < initialDivisor {
		initialDivisor = maxByGrain
	}
	if initialDivisor <= 1 {
		fn(lo, hi, ctx)
		return
	}

	launchAutoParallelTasks(ctx, fn, lo, count, initialDivisor, t)
}

func launchAutoParallelTasks(ctx *corerunner.TaskContext, body rangeCallback, first, count, initialDivisor int, traits Traits) {
	state := &sharedState{body: body}

	chunkSize := count / initialDivisor
	remainder := count % initialDivisor
	initialDivisorLog2 := uint8(bits.Len(uint(initialDivisor)) - 1)

	sched := ctx.Scheduler()
	launchWorker := ctx.Worker()
	currentPos := 0
	for i := 0; i < initialDivisor-1; i++ {
		size := chunkSize
		if i < remainder {
			size++
		}
		task := autoRange{
			state:       state,
			r:           indexRange{start: first + currentPos, end: first + currentPos + size},
			maxDepth:    0,
			divisorLog2: initialDivisorLog2,
			spawnWorker: launchWorker,
		}
		state.spawns.Add(1)
		sched.SubmitSelf(ctx, func(wc *corerunner.TaskContext) {
			task.execute(wc, traits)
			state.spawns.Add(-1)
		})
		currentPos += size
	}

	if currentPos < count {
		remaining := count - currentPos
		task := autoRange{
			state:       state,
			r:           indexRange{start: first + currentPos, end: first + currentPos + remaining},
			maxDepth:    0,
			divisorLog2: initialDivisorLog2,
			spawnWorker: launchWorker,
		}
		task.execute(ctx, traits)
	}

	ctx.BusyWait(func() bool { return state.spawns.Load() == 0 })
}
