package autoparallel

import (
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/go-foundations/corerunner"
)

// DefaultTraits configures DefaultParallelFor: a static partitioner with no
// feedback from stealing.
type DefaultTraits struct {
	// BatchesPerWorker controls how many batches each worker is given on
	// average; higher values smooth load imbalance at the cost of more
	// submit overhead.
	BatchesPerWorker int
	// ParallelExecutionThreshold: ranges at or below this size run inline.
	ParallelExecutionThreshold int
}

// DefaultDefaultTraits mirrors the original's defaults.
func DefaultDefaultTraits() DefaultTraits {
	return DefaultTraits{BatchesPerWorker: 1, ParallelExecutionThreshold: 0}
}

// DefaultParallelFor invokes body once for every i in [lo, hi), split into
// at most batches_per_worker*worker_count static batches and submitted up front —
// no adaptation to observed stealing, unlike AutoParallelFor. body may be
// either a Body or a RangeBody, same as AutoParallelFor.
func DefaultParallelFor(ctx *corerunner.TaskContext, low, high int, body any, traits ...DefaultTraits) {
	fn := adaptBody(body)

	t := DefaultDefaultTraits()
	if len(traits) > 0 {
		t = traits[0]
	}
	count := high - low
	if count <= 0 {
		return
	}

	sched := ctx.Scheduler()
	workerCount := int(sched.GetWorkerCount(ctx.Workgroup()))
	batchesPerWorker := t.BatchesPerWorker
	if batchesPerWorker < 1 {
		batchesPerWorker = 1
	}
	workCount := batchesPerWorker * workerCount
	if workCount > count {
		workCount = count
	}

	if count <= t.ParallelExecutionThreshold || workCount <= 1 {
		fn(low, high, ctx)
		return
	}

	indices := make([]int, count)
	for i := range indices {
		indices[i] = low + i
	}
	batches := lo.Chunk(indices, (count+workCount-1)/workCount)

	// The current worker keeps the last batch and runs it inline, matching
	// the original's "current thread processes the remaining work" step;
	// every other batch is submitted as a task. Each batch is a contiguous
	// run of indices, so it collapses to a single [start, end) range call.
	var pending atomic.Int64
	pending.Add(int64(len(batches) - 1))

	for _, batch := range batches[:len(batches)-1] {
		start, end := batch[0], batch[len(batch)-1]+1
		sched.SubmitSelf(ctx, func(wc *corerunner.TaskContext) {
			fn(start, end, wc)
			pending.Add(-1)
		})
	}

	last := batches[len(batches)-1]
	fn(last[0], last[len(last)-1]+1, ctx)

	ctx.BusyWait(func() bool { return pending.Load() == 0 })
}
