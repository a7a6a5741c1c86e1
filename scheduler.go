package corerunner

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/go-foundations/corerunner/internal/pause"
)

// MetricsSink receives the same accounting events the pending-work counter
// already computes, so wiring metrics never adds new synchronization to
// the hot path. See package metrics for the Prometheus backed
// implementation.
type MetricsSink interface {
	TaskSubmitted(group WorkgroupID)
	TaskCompleted(group WorkgroupID)
	MailboxFallback(group WorkgroupID)
	WorkerSleeping(workerCount int32)
}

// Config configures a Scheduler. The zero value is usable: a nop logger, no
// metrics, the default per-worker queue capacity, and an auto-growing
// worker count.
type Config struct {
	// QueueCapacity overrides the per-worker queue capacity (rounded up to
	// a power of two). Zero uses defaultQueueCapacity.
	QueueCapacity int
	// WorkerCount, if non-zero, fixes the total worker count up front:
	// CreateGroup panics with ErrOverlappingWorkersExceedCount if a group's
	// [start, start+count) range would exceed it. Zero (the default)
	// auto-grows the worker count to the highest end of any declared group.
	WorkerCount uint32
	// Logger receives Debug/Warn/Error events; defaults to zap.NewNop().
	Logger *zap.Logger
	// Metrics, if non-nil, is updated at every submit/complete/mailbox
	// event. Optional; a nil sink costs one interface-nil check per event.
	Metrics MetricsSink
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// entryFunc is invoked exactly once on every worker before it enters its
// main loop.
type entryFunc func(WorkerID)

type wakeSlot struct {
	status atomic.Bool
	event  chan struct{}
}

func newWakeSlot() *wakeSlot {
	return &wakeSlot{event: make(chan struct{}, 1)}
}

// wake releases one token if the worker was asleep; a no-op otherwise.
func (s *wakeSlot) wake() {
	if s.status.CompareAndSwap(true, false) {
		select {
		case s.event <- struct{}{}:
		default:
		}
	}
}

func (s *wakeSlot) markAsleep() {
	s.status.Store(true)
}

func (s *Scheduler) reportSleeping(delta int32) {
	n := s.sleepingWorkers.Add(delta)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.WorkerSleeping(n)
	}
}

func (s *wakeSlot) isAsleep() bool {
	return s.status.Load()
}

// workerState is the per-worker scratch the run loop and any code
// cooperatively busy-working on that worker's behalf shares. Every field
// is only ever touched by the single goroutine that owns this worker, so
// none of it needs to be atomic.
type workerState struct {
	id           WorkerID
	rngState     uint32
	failureCount uint32
	memberGroups []WorkgroupID // priority-ordered, descending priority / ascending index
	contexts     map[WorkgroupID]*TaskContext
}

func (w *workerState) nextRand() uint32 {
	// A simple LCG: fast, good enough for victim selection, never used for
	// anything security sensitive.
	const mul, inc = 1664525, 1013904223
	w.rngState = w.rngState*mul + inc
	return w.rngState
}

// Scheduler owns the worker array, the declared workgroups, and the wake
// primitives.
type Scheduler struct {
	cfg Config

	// groupsMu guards group declaration; groups are write-once before
	// BeginExecution and read-only (lock-free) afterward.
	groupsMu    sync.Mutex
	groups      []*Workgroup
	workerCount uint32
	started     atomic.Bool

	stop     atomic.Bool
	finished atomic.Int32

	workers         []*workerState
	wakeSlots       []*wakeSlot
	wg              sync.WaitGroup
	mainContext     *TaskContext
	sleepingWorkers atomic.Int32
}

// NewScheduler creates an unstarted scheduler. Call CreateGroup for each
// workgroup, then BeginExecution.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// CreateGroup declares a workgroup occupying the worker range
// [start, start+count). Must be called before BeginExecution; group layout
// is frozen thereafter. Returns the assigned id.
func (s *Scheduler) CreateGroup(start, count, priority uint32) WorkgroupID {
	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()

	if s.started.Load() {
		panic(ErrGroupsFrozen)
	}
	id := WorkgroupID(len(s.groups))
	if id.Index() >= MaxWorkgroups {
		panic(ErrTooManyWorkgroups)
	}
	end := start + count
	if s.cfg.WorkerCount > 0 && end > s.cfg.WorkerCount {
		panic(ErrOverlappingWorkersExceedCount)
	}
	wg := newWorkgroup(id, start, count, priority, s.cfg.QueueCapacity)
	s.groups = append(s.groups, wg)
	if end > s.workerCount {
		s.workerCount = end
	}
	return id
}

// Group returns the workgroup by id.
func (s *Scheduler) Group(id WorkgroupID) *Workgroup {
	return s.groups[id.Index()]
}

// GetWorkerCount returns the number of workers owned by group g.
func (s *Scheduler) GetWorkerCount(g WorkgroupID) uint32 {
	return s.groups[g.Index()].WorkerCount()
}

// GetWorkerStartIdx returns the first worker index owned by group g.
func (s *Scheduler) GetWorkerStartIdx(g WorkgroupID) uint32 {
	return s.groups[g.Index()].StartWorker()
}

// logicalDivisorScale is the multiplier applied to a group's worker count
// to get a default parallel-for divisor: enough chunks per worker that an
// uneven chunk doesn't stall the whole loop.
const logicalDivisorScale = 4

// GetLogicalDivisor returns a suggested parallel-for divisor for group g:
// worker_count(g) * 4.
func (s *Scheduler) GetLogicalDivisor(g WorkgroupID) uint32 {
	return s.groups[g.Index()].WorkerCount() * logicalDivisorScale
}

// WorkerCount returns the total worker count, the maximum start+count over
// every declared group.
func (s *Scheduler) WorkerCount() uint32 { return s.workerCount }

// BeginExecution allocates workers and queues, starts WorkerCount()-1 extra
// goroutines (the caller becomes worker 0), and invokes entry once on every
// worker before returning.
func (s *Scheduler) BeginExecution(entry entryFunc, userContext any) {
	s.groupsMu.Lock()
	if s.started.Load() {
		s.groupsMu.Unlock()
		return
	}
	s.started.Store(true)
	workerCount := s.workerCount
	s.groupsMu.Unlock()

	if entry == nil {
		entry = func(WorkerID) {}
	}

	s.workers = make([]*workerState, workerCount)
	s.wakeSlots = make([]*wakeSlot, workerCount)
	for i := range s.workers {
		ws := &workerState{id: WorkerID(i), rngState: uint32(i) ^ 0xAAAAAAAA, contexts: map[WorkgroupID]*TaskContext{}}
		s.workers[i] = ws
		s.wakeSlots[i] = newWakeSlot()
	}
	s.assignPriorityOrder()

	for i, ws := range s.workers {
		var mask uint32
		for _, g := range ws.memberGroups {
			mask |= 1 << uint(g)
		}
		for _, g := range ws.memberGroups {
			group := s.groups[g.Index()]
			offset := uint32(i) - group.StartWorker()
			ws.contexts[g] = newTaskContext(s, WorkerID(i), g, offset, mask, userContext)
		}
	}

	s.stop.Store(false)
	s.finished.Store(0)

	var start sync.WaitGroup
	start.Add(int(workerCount))
	wrappedEntry := func(id WorkerID) {
		entry(id)
		start.Done()
	}

	s.wg.Add(int(workerCount) - 1)
	for i := uint32(1); i < workerCount; i++ {
		go s.runWorker(WorkerID(i), wrappedEntry)
	}

	runtime.LockOSThread()
	wrappedEntry(0)
	if len(s.workers[0].memberGroups) > 0 {
		s.mainContext = s.workers[0].contexts[s.workers[0].memberGroups[0]]
	} else {
		s.mainContext = newTaskContext(s, 0, NoWorkgroup, 0, 0, userContext)
	}

	start.Wait()
	s.cfg.logger().Debug("scheduler started", zap.Uint32("workers", workerCount), zap.Int("groups", len(s.groups)))
}

// assignPriorityOrder computes, per worker, the list of groups it belongs
// to (its index falls in the group's [start, start+count) range), stable
// sorted by descending priority then ascending group index.
func (s *Scheduler) assignPriorityOrder() {
	for gi, g := range s.groups {
		for w := g.StartWorker(); w < g.StartWorker()+g.WorkerCount(); w++ {
			ws := s.workers[w]
			ws.memberGroups = append(ws.memberGroups, WorkgroupID(gi))
		}
	}
	for _, ws := range s.workers {
		groups := ws.memberGroups
		sort.SliceStable(groups, func(i, j int) bool {
			gi, gj := s.groups[groups[i].Index()], s.groups[groups[j].Index()]
			if gi.Priority() != gj.Priority() {
				return gi.Priority() > gj.Priority()
			}
			return groups[i] < groups[j]
		})
	}
}

// runWorker is the main loop for every worker but worker 0, which instead
// runs inline inside BeginExecution/EndExecution's caller goroutine.
func (s *Scheduler) runWorker(id WorkerID, entry func(WorkerID)) {
	defer s.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	entry(id)

	for !s.stop.Load() {
		for s.findAndExecuteOneTask(id) {
		}
		s.wakeSlots[id.Index()].markAsleep()
		s.reportSleeping(1)
		<-s.wakeSlots[id.Index()].event
		s.reportSleeping(-1)
	}
	s.finished.Add(1)
}

// findAndExecuteOneTask is the worker main loop body: own queue, steal
// within group, own group's mailbox, then the next group in this worker's
// priority list.
func (s *Scheduler) findAndExecuteOneTask(id WorkerID) bool {
	ws := s.workers[id.Index()]
	for _, gid := range ws.memberGroups {
		group := s.groups[gid.Index()]
		offset := uint32(id) - group.StartWorker()

		if item, ok := group.PopFromWorker(offset); ok {
			s.execute(ws, gid, item)
			return true
		}
		hint := ws.nextRand() % group.WorkerCount()
		if item, ok := group.Steal(offset, hint); ok {
			s.execute(ws, gid, item)
			return true
		}
		if item, ok := group.ReceiveFromMailbox(); ok {
			s.execute(ws, gid, item)
			return true
		}
	}
	s.backoff(ws)
	return false
}

func (s *Scheduler) backoff(ws *workerState) {
	ws.failureCount++
	const yieldThreshold = 16
	if ws.failureCount > yieldThreshold {
		runtime.Gosched()
		return
	}
	pause.Spin(1)
}

func (s *Scheduler) execute(ws *workerState, gid WorkgroupID, item WorkItem) {
	ws.failureCount = 0
	ctx := ws.contexts[gid]
	if ctx == nil {
		// A foreign group visited outside this worker's static membership
		// (not reachable under v1's traversal, kept for forward
		// compatibility with a future v2 traversal).
		group := s.groups[gid.Index()]
		ctx = newTaskContext(s, ws.id, gid, uint32(ws.id)-group.StartWorker(), 0, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger().Error("task panicked", zap.Any("recovered", r), zap.Uint32("worker", uint32(ws.id)))
			s.groups[gid.Index()].SinkOneWork()
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.TaskCompleted(gid)
			}
			panic(r)
		}
	}()

	item.invoke(ctx)
	s.groups[gid.Index()].SinkOneWork()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.TaskCompleted(gid)
	}
}

// Submit enqueues work for execution under group, following a three stage
// probe: an idle-worker pass, a bounded round-robin retry pass with
// exponential backoff, then an unconditional mailbox push.
func (s *Scheduler) Submit(src *TaskContext, group WorkgroupID, work WorkItem) {
	if !s.started.Load() {
		panic(ErrSchedulerNotStarted)
	}
	if s.stop.Load() {
		panic(ErrSchedulerStopped)
	}
	wg := s.groups[group.Index()]
	n := wg.WorkerCount()
	start := rand.Uint32() % n

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.TaskSubmitted(group)
	}

	// Stage 1: prefer a currently-sleeping worker.
	for attempt := uint32(0); attempt < n; attempt++ {
		offset := (start + attempt) % n
		workerIdx := wg.StartWorker() + offset
		slot := s.wakeSlots[workerIdx]
		if slot.isAsleep() && wg.PushToWorker(offset, work) {
			slot.wake()
			return
		}
	}

	// Stage 2: bounded round-robin retry with exponential backoff,
	// cooperatively busy-working on the submitter's own worker to avoid
	// pure spinning.
	const maxRetries = 1000
	const maxBackoffShift = 10
	for retry := uint32(0); retry < maxRetries; retry++ {
		for attempt := uint32(0); attempt < n; attempt++ {
			offset := (start + attempt) % n
			workerIdx := wg.StartWorker() + offset
			if wg.PushToWorker(offset, work) {
				s.wakeSlots[workerIdx].wake()
				return
			}
			if src != nil && workerIdx == uint32(src.Worker()) {
				s.BusyWork(src)
			} else if attempt%2 == 0 {
				s.wakeSlots[workerIdx].wake()
			}
		}
		shift := retry
		if shift > maxBackoffShift {
			shift = maxBackoffShift
		}
		pause.Spin(1 << shift)
	}

	// Stage 3: unconditional mailbox fallback, never fails.
	wg.SubmitToMailbox(work)
	s.wakeAllInGroup(wg)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.MailboxFallback(group)
	}
	s.cfg.logger().Warn("workgroup mailbox fallback", zap.Uint32("group", uint32(group)))
}

// SubmitSelf is the shorthand submit(ctx, work): enqueue into the
// submitting context's own workgroup.
func (s *Scheduler) SubmitSelf(src *TaskContext, work WorkItem) {
	s.Submit(src, src.Workgroup(), work)
}

func (s *Scheduler) wakeAllInGroup(g *Workgroup) {
	for i := g.StartWorker(); i < g.StartWorker()+g.WorkerCount(); i++ {
		s.wakeSlots[i].wake()
	}
}

// BusyWork executes at most a small bounded number of stealing attempts (3)
// and returns. If a task ran, the caller should re-check whatever condition
// it is waiting on.
func (s *Scheduler) BusyWork(ctx *TaskContext) {
	const maxAttempts = 3
	id := ctx.Worker()
	if id.Index() >= len(s.workers) {
		return
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if s.findAndExecuteOneTask(id) {
			return
		}
		pause.CPU()
	}
}

// hasWork reports whether any declared group has outstanding pending work.
func (s *Scheduler) hasWork() bool {
	for _, g := range s.groups {
		if g.HasWorkStrong() {
			return true
		}
	}
	return false
}

// WaitForTasks blocks the calling thread until every group's pending-work
// counter has reached zero, cooperatively busy-working on worker 0's
// behalf in the meantime.
func (s *Scheduler) WaitForTasks() {
	for s.hasWork() {
		for i := uint32(1); i < s.workerCount; i++ {
			s.wakeSlots[i].wake()
		}
		if s.mainContext != nil {
			s.BusyWork(s.mainContext)
		} else {
			pause.CPU()
		}
	}
}

// TakeOwnership re-publishes the calling thread as worker 0. With no
// package-level thread-local state, this is a documented no-op retained for
// API parity with callers that thread TaskContext explicitly instead.
func (s *Scheduler) TakeOwnership() {}

// EndExecution waits for all pending tasks to finish, forbids further
// submissions, wakes every worker, and joins their goroutines.
func (s *Scheduler) EndExecution() {
	s.WaitForTasks()
	s.stop.Store(true)

	target := int32(s.workerCount) - 1
	for s.finished.Load() < target {
		for i := uint32(1); i < s.workerCount; i++ {
			s.wakeSlots[i].wake()
		}
		pause.CPU()
	}
	s.wg.Wait()
	runtime.UnlockOSThread()
	s.cfg.logger().Debug("scheduler stopped")
}

// String renders a brief diagnostic summary, useful in panics and logs.
func (s *Scheduler) String() string {
	return fmt.Sprintf("Scheduler{workers=%d groups=%d}", s.workerCount, len(s.groups))
}
