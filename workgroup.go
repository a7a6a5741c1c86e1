package corerunner

import (
	"sync/atomic"

	"github.com/go-foundations/corerunner/internal/mailbox"
	"github.com/go-foundations/corerunner/internal/queue"
)

// defaultQueueCapacity is the per-worker queue capacity used when a group is
// declared without an explicit override.
const defaultQueueCapacity = 256

// Workgroup holds a contiguous slice of worker indices, a priority used to
// order a worker's traversal across the groups it belongs to, one
// work-stealing deque per member worker, and an overflow mailbox.
type Workgroup struct {
	id          WorkgroupID
	start       uint32
	count       uint32
	priority    uint32
	queues      []*queue.Deque[WorkItem]
	mailbox     *mailbox.Mailbox[WorkItem]
	pending     atomic.Int64
	// occupancy bounds concurrent drainers of this group to its worker
	// count. The fixed priority-list traversal never needs it (a worker's
	// own slot is always itself), so it is only exercised by tests that
	// pin down a forward-compatible occupancy contract for a future
	// dynamic traversal.
	occupancy atomic.Int32
}

func newWorkgroup(id WorkgroupID, start, count, priority uint32, queueCapacity int) *Workgroup {
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	wg := &Workgroup{
		id:       id,
		start:    start,
		count:    count,
		priority: priority,
		queues:   make([]*queue.Deque[WorkItem], count),
		mailbox:  mailbox.New[WorkItem](),
	}
	for i := range wg.queues {
		wg.queues[i] = queue.New[WorkItem](queueCapacity)
	}
	return wg
}

// StartWorker returns the first worker index owned by this group.
func (g *Workgroup) StartWorker() uint32 { return g.start }

// WorkerCount returns the number of workers owned by this group.
func (g *Workgroup) WorkerCount() uint32 { return g.count }

// Priority returns the group's traversal priority (higher runs first).
func (g *Workgroup) Priority() uint32 { return g.priority }

// Pending returns the current pending-work count: submitted minus completed.
func (g *Workgroup) Pending() int64 { return g.pending.Load() }

// PushToWorker tries to enqueue work on the given member's own queue.
// Increments pending on success.
func (g *Workgroup) PushToWorker(offset uint32, work WorkItem) bool {
	if !g.queues[offset].Push(work) {
		return false
	}
	g.pending.Add(1)
	return true
}

// SubmitToMailbox enqueues work in the group's overflow mailbox. Never
// fails; always increments pending.
func (g *Workgroup) SubmitToMailbox(work WorkItem) {
	g.mailbox.Push(work)
	g.pending.Add(1)
}

// PopFromWorker is the owner-drain path: offset must be the calling
// worker's own offset within this group. Pop/steal/mailbox-receive do not
// touch pending — only sink (after execution) does.
func (g *Workgroup) PopFromWorker(offset uint32) (WorkItem, bool) {
	return g.queues[offset].PopOwner()
}

// Steal scans sibling offsets starting at hint, then probes outward, and
// returns the first successful steal.
func (g *Workgroup) Steal(selfOffset, hint uint32) (WorkItem, bool) {
	n := g.count
	if n <= 1 {
		return nil, false
	}
	for distance := uint32(0); distance <= n/2+1; distance++ {
		for _, dir := range [2]int32{1, -1} {
			off := int32(hint) + dir*int32(distance)
			off %= int32(n)
			if off < 0 {
				off += int32(n)
			}
			victim := uint32(off)
			if victim == selfOffset {
				continue
			}
			if item, ok := g.queues[victim].Steal(); ok {
				return item, true
			}
		}
	}
	return nil, false
}

// ReceiveFromMailbox pops from the overflow mailbox.
func (g *Workgroup) ReceiveFromMailbox() (WorkItem, bool) {
	return g.mailbox.Pop()
}

// SinkOneWork decrements pending after a task finished executing.
func (g *Workgroup) SinkOneWork() {
	g.pending.Add(-1)
}

// HasWork is a weak (relaxed-equivalent) check used opportunistically.
func (g *Workgroup) HasWork() bool {
	return g.pending.Load() > 0
}

// HasWorkStrong is the acquire-ordered check WaitForTasks relies on. Go's
// atomic.Int64.Load already has acquire-or-stronger semantics, so this is
// identical to HasWork; the separate method exists to keep call sites
// self-documenting about which ordering guarantee they depend on.
func (g *Workgroup) HasWorkStrong() bool {
	return g.pending.Load() > 0
}

// Enter attempts to occupy one of this group's occupancy slots. Returns
// false if the group is already at capacity. The fixed priority-list
// traversal does not call this on the hot path (a worker's "own" group
// membership isn't gated by occupancy), but it is kept as a documented,
// tested primitive for a future dynamic traversal that shares groups
// across more workers than their queue count.
func (g *Workgroup) Enter() bool {
	for {
		cur := g.occupancy.Load()
		if cur >= int32(g.count) {
			return false
		}
		if g.occupancy.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Exit releases an occupancy slot acquired by Enter.
func (g *Workgroup) Exit() {
	g.occupancy.Add(-1)
}
