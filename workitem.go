package corerunner

// WorkItem is a type-erased unit of work submitted at most once. Single
// consumption is enforced by the queues, not by WorkItem itself: the mailbox
// clears the slot it held the item in, and a per-worker deque hands each
// slot to exactly one popper or stealer through a compare-and-swap on its
// top index (the deque does not clear the slot).
type WorkItem func(ctx *TaskContext)

// invoke calls the work item. Queues and the mailbox hand a WorkItem to the
// scheduler exactly once, so there is nothing left to invoke a second time;
// a nil item reaching invoke is itself a programmer error (e.g. a hand-built
// queue entry), and is classified as fatal rather than silently skipped.
func (w WorkItem) invoke(ctx *TaskContext) {
	if w == nil {
		panic(ErrWorkItemConsumed)
	}
	w(ctx)
}
