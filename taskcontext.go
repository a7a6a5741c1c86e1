package corerunner

// TaskContext is the immutable record passed to every task body: which
// worker is executing, which workgroup it is executing under, and the
// opaque user pointer supplied to BeginExecution. It is threaded explicitly
// through every call (the same way context.Context is threaded), so there
// is no package-level thread-local state anywhere in this module.
type TaskContext struct {
	scheduler    *Scheduler
	worker       WorkerID
	workgroup    WorkgroupID
	groupOffset  uint32
	groupMask    uint32
	userContext  any
}

func newTaskContext(s *Scheduler, worker WorkerID, group WorkgroupID, groupOffset uint32, groupMask uint32, user any) *TaskContext {
	return &TaskContext{
		scheduler:   s,
		worker:      worker,
		workgroup:   group,
		groupOffset: groupOffset,
		groupMask:   groupMask,
		userContext: user,
	}
}

// Scheduler returns the owning scheduler. TaskContext borrows it; it never
// extends its lifetime.
func (c *TaskContext) Scheduler() *Scheduler { return c.scheduler }

// Worker returns the id of the worker executing the current task.
func (c *TaskContext) Worker() WorkerID { return c.worker }

// Workgroup returns the id of the workgroup the current task was dispatched
// under.
func (c *TaskContext) Workgroup() WorkgroupID { return c.workgroup }

// GroupOffset returns worker_id - group.start, the worker's index within its
// workgroup's contiguous worker range.
func (c *TaskContext) GroupOffset() uint32 { return c.groupOffset }

// GroupMask returns the bitmask of every workgroup this worker is a member
// of (a worker whose index falls in more than one declared group's range
// belongs to all of them).
func (c *TaskContext) GroupMask() uint32 { return c.groupMask }

// UserContext returns the opaque pointer supplied to BeginExecution. The
// scheduler never dereferences or owns it.
func (c *TaskContext) UserContext() any { return c.userContext }

// BusyWait cooperatively steals and executes work until acquire reports
// success, turning what would otherwise be a blocking wait into a
// work-stealing wait. acquire is called once before the first steal
// attempt so callers whose condition is already satisfied never touch the
// scheduler.
func (c *TaskContext) BusyWait(acquire func() bool) {
	for !acquire() {
		c.scheduler.BusyWork(c)
	}
}

// withWorkgroup returns a derived context for the same worker but a
// different workgroup. The scheduler does not call it: execute builds the
// context for a group outside the worker's membership with newTaskContext.
func (c *TaskContext) withWorkgroup(group WorkgroupID, groupOffset uint32) *TaskContext {
	return &TaskContext{
		scheduler:   c.scheduler,
		worker:      c.worker,
		workgroup:   group,
		groupOffset: groupOffset,
		groupMask:   c.groupMask,
		userContext: c.userContext,
	}
}
