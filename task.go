package taskpool

import (
	"context"
	"time"
)

// progressBufSize is the capacity of every task progress channel. A body
// can emit this many updates with nobody consuming before a send would
// block.
const progressBufSize = 16

// Priority orders tasks in the queue. Higher values dispatch first;
// tasks of equal priority dispatch in submission order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ExecuteFunc is the body of a task.
//
// ctx is cancelled when the attempt times out or the scheduler is hard
// stopped; bodies should watch it across long operations. progress
// accepts integer progress updates; the scheduler never reads or stores
// them, it only hands the receive side to the submitter.
type ExecuteFunc func(ctx context.Context, progress chan<- int) error

// Task describes one unit of work. A Task is copied at Submit and never
// mutated by the scheduler; every retry runs the same Task value.
type Task struct {
	// ID deduplicates submissions. While a task with this ID is queued,
	// executing, or waiting out a backoff, further Submits of the same ID
	// coalesce onto its channels. Empty means "assign a fresh UUID".
	ID string

	// Type selects the rate-limit bucket. Types without a configured
	// limit start immediately.
	Type string

	Priority Priority

	// MaxRetries is the number of extra attempts after the first one
	// fails. Negative values are treated as zero.
	MaxRetries int

	// Timeout bounds each individual attempt. Zero means no deadline.
	Timeout time.Duration

	Execute ExecuteFunc
}

// State tags a terminal Result.
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Result is the terminal outcome of an accepted task. It is delivered
// exactly once on the channel returned by Submit; the channel is never
// closed and never written again.
type Result struct {
	State State

	// Err is nil iff State is StateCompleted. When every attempt failed
	// it carries all attempt errors combined; errors.Is matches any one
	// of them.
	Err error

	// Attempts is how many attempts ran, including the final one.
	Attempts int
}
