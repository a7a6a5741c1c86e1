package corerunner

import (
	"errors"
	"math"
)

// WorkerID is a dense identifier for a worker in [0, N).
type WorkerID uint32

// NoWorker is the sentinel worker id, used where "no worker" must be
// represented (e.g. a group that found no work).
const NoWorker WorkerID = math.MaxUint32

// Index returns the integer index backing this worker id, for use indexing
// into worker-indexed slices.
func (w WorkerID) Index() int { return int(w) }

// WorkgroupID is a dense identifier for a workgroup in [0, MaxWorkgroups).
type WorkgroupID uint32

// NoWorkgroup is the sentinel workgroup id.
const NoWorkgroup WorkgroupID = math.MaxUint32

// Index returns the integer index backing this workgroup id.
func (g WorkgroupID) Index() int { return int(g) }

// MaxWorkgroups bounds the number of workgroups a scheduler may declare;
// group membership is tracked with a uint32 bitmask per worker.
const MaxWorkgroups = 32

var (
	// ErrSchedulerNotStarted is panicked when Submit is called before
	// BeginExecution.
	ErrSchedulerNotStarted = errors.New("corerunner: scheduler has not called BeginExecution")

	// ErrSchedulerStopped is panicked when submitting after EndExecution.
	ErrSchedulerStopped = errors.New("corerunner: submit after EndExecution")

	// ErrTooManyWorkgroups is panicked when a group index exceeds MaxWorkgroups.
	ErrTooManyWorkgroups = errors.New("corerunner: workgroup index exceeds MaxWorkgroups")

	// ErrOverlappingWorkersExceedCount is panicked when declared groups
	// imply more workers than the scheduler was configured for.
	ErrOverlappingWorkersExceedCount = errors.New("corerunner: group worker range exceeds configured worker count")

	// ErrWorkItemConsumed is panicked when a nil WorkItem reaches
	// invocation; a second invocation of a non-nil item is not detected.
	ErrWorkItemConsumed = errors.New("corerunner: work item invoked more than once")

	// ErrGroupsFrozen is panicked by CreateGroup once BeginExecution has run;
	// workgroup layout is write-once.
	ErrGroupsFrozen = errors.New("corerunner: CreateGroup called after BeginExecution")
)
