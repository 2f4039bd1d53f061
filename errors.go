package taskpool

import "errors"

var (
	// ErrQueueFull is returned by Submit when the queue already holds
	// MaxQueueSize tasks and the scheduler was configured not to block.
	ErrQueueFull = errors.New("taskpool: queue is full")

	// ErrSchedulerClosed is returned by Submit once Shutdown has begun.
	ErrSchedulerClosed = errors.New("taskpool: scheduler closed")

	// ErrNilExecute is returned by Submit for a task without a body.
	ErrNilExecute = errors.New("taskpool: task has no execute func")
)
