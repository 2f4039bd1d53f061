package taskpool

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Stats is a point-in-time snapshot of scheduler counters. All relations
// a reader can derive hold in every snapshot: Running never exceeds
// Submitted, and Completed+Failed never exceeds Submitted.
type Stats struct {
	// Submitted counts accepted submissions. Dedup hits and queue-full
	// rejections are not submissions.
	Submitted uint64

	// Running is the number of attempts executing right now. A task
	// waiting out a backoff or a rate-limit token is not running.
	Running int64

	// Completed counts tasks whose terminal result was a success.
	Completed uint64

	// Failed counts tasks whose final attempt failed with no retries left.
	Failed uint64
}

// counters is the lock-free collector behind Stats.
//
// Writes are optimized for hot paths; reads are intended for cold-path
// observation. The hot fields sit on separate cache lines to avoid
// false sharing between submitters and workers.
type counters struct {
	submitted atomic.Uint64
	_         cpu.CacheLinePad

	running atomic.Int64
	_       cpu.CacheLinePad

	completed atomic.Uint64
	failed    atomic.Uint64
}

// snapshot loads submitted last. Running, completed and failed never
// exceed the live submitted count and submitted only grows, so this
// order keeps the documented relations intact without taking a lock.
func (c *counters) snapshot() Stats {
	running := c.running.Load()
	completed := c.completed.Load()
	failed := c.failed.Load()
	return Stats{
		Submitted: c.submitted.Load(),
		Running:   running,
		Completed: completed,
		Failed:    failed,
	}
}
