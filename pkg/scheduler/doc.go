/*
Package scheduler runs the task queue driving zoneweaverd: a ticker loop
that, once per tick, looks for the single highest-priority pending task
whose operation category (if any) is not currently locked by another
running task and whose depends_on predecessor (if any) has already
completed, then dispatches it to its registered handler in its own
goroutine.

# Concurrency model

One scheduler-owned ticker drives dispatch decisions; handlers themselves
run concurrently, up to maxConcurrent, tracked in runningTasks. A single
mutex guards runningTasks and runningCategories — contention is expected to
be negligible since it is only held for the brief bookkeeping around
dispatch and release, never for the handler's own execution.

# Crash recovery

On Start, any task still persisted as "running" is marked failed with
"interrupted by process restart": a task in that state when the process
starts can only mean the previous process died mid-execution, and there is
no safe way to resume an unknown-progress shell command.

# Panics

A handler that panics does not take down the scheduler. invoke recovers at
one boundary and converts the panic into a failed Result; handlers
themselves are not expected to contain their own recover().
*/
package scheduler
