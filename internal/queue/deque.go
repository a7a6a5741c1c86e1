// Package queue implements the per-worker task queue: a fixed-capacity,
// single-consumer multiple-producer work-stealing ring adapted from the
// Chase-Lev deque. Push and PopOwner are only ever called by the deque's
// owning worker; Steal may be called concurrently by any number of other
// workers, lock-free, with a failed steal expected to retry or fall through
// to another source of work. Push appends at the bottom; PopOwner and Steal
// both take the oldest item from the top.
package queue

import "sync/atomic"

// Deque is a bounded work-stealing ring. Capacity is fixed at
// construction and rounded up to the next power of two; Push returns false
// once the deque is full rather than growing, so a full queue's caller must
// retry or route the work elsewhere (a sibling worker, the group mailbox).
type Deque[T any] struct {
	mask   int64
	buffer []T
	top    atomic.Int64 // steal side
	bottom atomic.Int64 // owner side
}

// New creates a Deque with capacity rounded up to the next power of two
// (minimum 8).
func New[T any](capacity int) *Deque[T] {
	cap := nextPow2(capacity)
	if cap < 8 {
		cap = 8
	}
	return &Deque[T]{
		mask:   int64(cap - 1),
		buffer: make([]T, cap),
	}
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push appends an item at the bottom (owner-only). Returns false if the
// deque is at capacity; the caller must route the item elsewhere (a sibling
// queue, then the workgroup mailbox).
func (d *Deque[T]) Push(item T) bool {
	b := d.bottom.Load()
	t := d.top.Load()
	if b-t >= int64(len(d.buffer)) {
		return false
	}
	d.buffer[b&d.mask] = item
	d.bottom.Store(b + 1)
	return true
}

// PopOwner removes and returns the oldest item (owner-only), giving the
// owner FIFO order relative to its own pushes. It competes with concurrent
// stealers for the top index and retries after losing that race. Returns
// ok=false if the deque is empty at the moment of the call.
func (d *Deque[T]) PopOwner() (item T, ok bool) {
	for {
		t := d.top.Load()
		b := d.bottom.Load()
		if t >= b {
			return item, false
		}
		item = d.buffer[t&d.mask]
		if d.top.CompareAndSwap(t, t+1) {
			return item, true
		}
	}
}

// Steal removes and returns the oldest item (any non-owner thread). Never
// blocks: returns ok=false on an empty deque or on losing a race against
// another stealer or the owner's PopOwner, in which case the caller should
// retry or move on to the next victim.
func (d *Deque[T]) Steal() (item T, ok bool) {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return item, false
	}
	item = d.buffer[t&d.mask]
	if !d.top.CompareAndSwap(t, t+1) {
		var zero T
		return zero, false
	}
	return item, true
}

// Len returns a momentary size estimate; only exact when called by the
// owner with no concurrent stealers in flight.
func (d *Deque[T]) Len() int {
	n := d.bottom.Load() - d.top.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Empty reports whether the deque held no items at the moment of the call.
func (d *Deque[T]) Empty() bool {
	return d.Len() == 0
}
