// Package corerunner provides an embeddable, fixed-pool work-stealing task
// scheduler: workers are organized into priority-ordered workgroups, each
// with a per-worker stealable queue and a group-wide overflow mailbox. A
// cooperative adaptive data-parallel loop ("AutoParallelFor", package
// autoparallel) is layered on top of the same submission path.
//
// The scheduler is not a general purpose goroutine pool: tasks are
// short-lived, run to completion without suspension, and must not panic.
// Cancellation, timeouts, per-task priority, and cross-process execution are
// explicitly out of scope.
package corerunner
