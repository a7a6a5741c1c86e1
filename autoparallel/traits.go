// Package autoparallel implements two partitioners layered on top of a
// corerunner.Scheduler: AutoParallelFor, which adapts its split granularity
// to observed stealing, and DefaultParallelFor, a simpler static batcher.
package autoparallel

import "github.com/go-foundations/corerunner"

// Body is the per-element callback shape: invoked once per index in
// [Lo, Hi), under whichever worker happened to claim that index's subrange.
type Body func(i int, ctx *corerunner.TaskContext)

// RangeBody is the range-shaped callback shape: invoked once per leaf
// subrange with [start, end) instead of once per index, letting the body
// amortize per-call overhead (e.g. a slice sum) across the whole chunk.
type RangeBody func(start, end int, ctx *corerunner.TaskContext)

// rangeCallback is the shape every accepted body is adapted to internally:
// both partitioners split work into subranges regardless of which callback
// shape the caller supplied, so splitting only ever needs to hand a
// [start, end) pair to one normalized function.
type rangeCallback func(start, end int, ctx *corerunner.TaskContext)

// adaptBody normalizes whichever of the two supported callback shapes body
// is into a rangeCallback. Go has no compile-time overload resolution on
// call signature, so the element-shaped vs range-shaped choice is resolved
// here with a runtime type switch instead of the two-lambda-shape template
// overload the adaptive partitioner supports elsewhere.
func adaptBody(body any) rangeCallback {
	switch b := body.(type) {
	case Body:
		return elementToRange(b)
	case func(int, *corerunner.TaskContext):
		return elementToRange(Body(b))
	case RangeBody:
		return rangeCallback(b)
	case func(int, int, *corerunner.TaskContext):
		return rangeCallback(b)
	default:
		panic("autoparallel: body must be a Body (func(int, *corerunner.TaskContext)) or a RangeBody (func(int, int, *corerunner.TaskContext))")
	}
}

func elementToRange(b Body) rangeCallback {
	return func(start, end int, ctx *corerunner.TaskContext) {
		for i := start; i < end; i++ {
			b(i, ctx)
		}
	}
}

// Traits are the auto partitioner's compile-time policy knobs, exposed here
// as runtime configuration since Go has no template non-type parameters.
type Traits struct {
	// GrainSize is the minimum subrange size considered worth splitting
	// further.
	GrainSize int
	// MaxDepth bounds split recursion.
	MaxDepth uint8
	// DepthIncrement is added to a stolen range's depth budget, letting it
	// split a little further than its parent could.
	DepthIncrement uint8
	// RangePoolCapacity bounds the local pending-range deque; must be a
	// power of two.
	RangePoolCapacity uint8
	// SequentialThreshold: ranges at or below this total size never spawn
	// any tasks at all.
	SequentialThreshold int
}

// DefaultAutoTraits returns the default adaptive-partitioner policy.
func DefaultAutoTraits() Traits {
	return Traits{
		GrainSize:           1,
		MaxDepth:            10,
		DepthIncrement:      2,
		RangePoolCapacity:   16,
		SequentialThreshold: 1,
	}
}
