package batch

import "sync"

// PriorityQueue is a binary heap over Job[T], ordering by descending
// Priority and, within a priority tier, by creation time (oldest first). A
// lower-priority job is popped only once no higher-priority job is queued.
type PriorityQueue[T any] struct {
	mu       sync.Mutex
	items    []Job[T]
	fairness map[int]int
}

// NewPriorityQueue creates an empty PriorityQueue.
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{fairness: make(map[int]int)}
}

// Push inserts a job, maintaining the heap property.
func (pq *PriorityQueue[T]) Push(job Job[T]) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.fairness[job.Priority]++
	pq.items = append(pq.items, job)
	pq.bubbleUp(len(pq.items) - 1)
}

// Pop removes and returns the highest-priority job.
func (pq *PriorityQueue[T]) Pop() (Job[T], bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.items) == 0 {
		return Job[T]{}, false
	}
	job := pq.items[0]
	pq.fairness[job.Priority]--

	pq.items[0] = pq.items[len(pq.items)-1]
	pq.items = pq.items[:len(pq.items)-1]
	if len(pq.items) > 0 {
		pq.bubbleDown(0)
	}
	return job, true
}

// Len reports the number of queued jobs.
func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}

func (pq *PriorityQueue[T]) bubbleUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if pq.shouldSwap(parent, index) {
			pq.items[parent], pq.items[index] = pq.items[index], pq.items[parent]
			index = parent
		} else {
			break
		}
	}
}

func (pq *PriorityQueue[T]) bubbleDown(index int) {
	for {
		left, right := 2*index+1, 2*index+2
		smallest := index
		if left < len(pq.items) && pq.shouldSwap(smallest, left) {
			smallest = left
		}
		if right < len(pq.items) && pq.shouldSwap(smallest, right) {
			smallest = right
		}
		if smallest == index {
			break
		}
		pq.items[index], pq.items[smallest] = pq.items[smallest], pq.items[index]
		index = smallest
	}
}

// shouldSwap reports whether child should outrank parent: higher Priority
// wins, ties broken by older Created first.
func (pq *PriorityQueue[T]) shouldSwap(parent, child int) bool {
	p, c := pq.items[parent], pq.items[child]
	if p.Priority != c.Priority {
		return c.Priority > p.Priority
	}
	return p.Created.After(c.Created)
}

// RunPriority behaves like Run but drains jobs into the scheduler in
// priority order rather than slice order: every job still competes for
// worker time under the scheduler's own work-stealing submit path, but
// higher-priority jobs are queued first and so tend to start sooner.
func (r *Runner[T, R]) RunPriority(jobs []Job[T]) ([]Result[R], Metrics, error) {
	pq := NewPriorityQueue[T]()
	for _, job := range jobs {
		pq.Push(job)
	}
	ordered := make([]Job[T], 0, len(jobs))
	for {
		job, ok := pq.Pop()
		if !ok {
			break
		}
		ordered = append(ordered, job)
	}
	return r.Run(ordered)
}
