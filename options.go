package taskpool

import (
	"runtime"

	"go.uber.org/zap"
)

const defaultMaxQueueSize = 256

// Config configures a Scheduler.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Config struct {
	// WorkerCount is the fixed number of worker goroutines Start spawns.
	WorkerCount int

	// MaxQueueSize bounds the number of queued, not yet dispatched
	// tasks. Executing tasks and tasks waiting out a backoff do not
	// count against it.
	MaxQueueSize int

	// BlockOnFull selects the overflow policy: block Submit until space
	// frees up, or fail fast with ErrQueueFull.
	BlockOnFull bool

	// Retry shapes the backoff between attempts.
	Retry RetryPolicy

	// Logger receives lifecycle logging. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics receives lifecycle hooks. Defaults to NoopMetrics.
	Metrics Metrics
}

func (c *Config) FillDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = runtime.GOMAXPROCS(0)
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}
	c.Retry.fillDefaults()
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = &NoopMetrics{}
	}
}
