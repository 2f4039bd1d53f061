package taskpool

import "time"

// Metrics defines hooks the scheduler calls to report task lifecycle
// events.
//
// Implementations must be safe for concurrent use. All methods are
// expected to be lightweight and non-blocking.
type Metrics interface {
	// TaskSubmitted reports an accepted submission.
	TaskSubmitted(taskType string)

	// TaskRejected reports a submission refused with ErrQueueFull.
	TaskRejected(taskType string)

	// TaskRetried reports a failed attempt that was re-enqueued.
	TaskRetried(taskType string)

	// TaskPanicked reports an attempt that ended in a recovered panic.
	TaskPanicked(taskType string)

	// TaskCompleted reports a terminal success and the duration of the
	// final attempt.
	TaskCompleted(taskType string, d time.Duration)

	// TaskFailed reports a terminal failure and the duration of the
	// final attempt.
	TaskFailed(taskType string, d time.Duration)
}

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a Metrics implementation that discards all updates.
//
// It is the default when no collector is configured and keeps the hook
// overhead at zero.
type NoopMetrics struct{}

func (m *NoopMetrics) TaskSubmitted(string)                {}
func (m *NoopMetrics) TaskRejected(string)                 {}
func (m *NoopMetrics) TaskRetried(string)                  {}
func (m *NoopMetrics) TaskPanicked(string)                 {}
func (m *NoopMetrics) TaskCompleted(string, time.Duration) {}
func (m *NoopMetrics) TaskFailed(string, time.Duration)    {}
