// Package taskpool provides an in-process task scheduler built on a
// fixed pool of worker goroutines.
//
// Design goals
//
// The package is designed around the following principles:
//
//   - Strict priority dispatch with stable FIFO order inside a level
//   - Per-type rate limits that gate execution start, never intake
//   - Retries with exponential backoff that never occupy a worker
//   - Duplicate in-flight submissions coalescing onto one result
//   - Observable counters that are consistent at any instant
//   - Bounded, leak-free shutdown even against misbehaving task bodies
//
// Architecture overview
//
// The scheduler is composed of three loosely coupled layers:
//
//   1. Intake (Submit)
//      Validates the task, assigns an ID when missing, coalesces
//      duplicates through the dedup registry and applies the queue
//      bound, either failing fast or blocking until space frees up.
//
//   2. Scheduling (priority queue and retry timers)
//      Accepted tasks wait in a heap ordered by priority and
//      submission sequence. Failed attempts leave the pool entirely
//      and re-enter the heap from a backoff timer, so a sleeping
//      retry never holds a worker.
//
//   3. Execution (workers)
//      Each worker pops the highest-priority task, passes the
//      per-type rate gate and runs one attempt with the body isolated
//      in its own goroutine. Panics are recovered into ordinary
//      errors, attempt timeouts are enforced with context deadlines,
//      and a body that ignores cancellation is detached rather than
//      waited on.
//
// Task lifecycle
//
// A task moves from queued to dispatched to executing, then either
// settles with a terminal result (delivered exactly once on its result
// channel) or re-enters the queue after a backoff. The result channel
// is buffered and never closed; submitters read exactly one value from
// it. Progress updates flow over a separate buffered channel the
// scheduler never touches.
//
// Shutdown
//
// Shutdown runs in two phases. The graceful phase refuses new
// submissions while queued work, executing attempts and pending
// retries drain. When the deadline expires first, the hard phase
// cancels every outstanding attempt context, stops the retry timers
// and joins the workers; tasks interrupted at that point are abandoned
// and their channels receive no further writes. Shutdown returns no
// later than the deadline plus scheduling overhead, regardless of what
// task bodies do.
package taskpool
