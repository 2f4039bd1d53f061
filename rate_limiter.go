package taskpool

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// typeLimits holds one token bucket per task type. Types without a
// bucket are unlimited and skip the gate entirely.
//
// Buckets use a burst of 1: a limit of n per second paces execution
// starts about 1/n apart instead of letting a full bucket start at
// once. Tokens accrue lazily; an idle type pays nothing.
type typeLimits struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

func newTypeLimits() *typeLimits {
	return &typeLimits{buckets: make(map[string]*rate.Limiter)}
}

// set installs or updates the bucket for a task type. A rate of zero or
// less removes the bucket. A goroutine already waiting finishes its
// wait under the old rate; the next acquisition sees the new one.
func (tl *typeLimits) set(taskType string, perSecond float64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if perSecond <= 0 {
		delete(tl.buckets, taskType)
		return
	}
	if lim, ok := tl.buckets[taskType]; ok {
		lim.SetLimit(rate.Limit(perSecond))
		return
	}
	tl.buckets[taskType] = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// wait blocks until the type's bucket grants a token or ctx is
// cancelled. Unlimited types return immediately.
func (tl *typeLimits) wait(ctx context.Context, taskType string) error {
	tl.mu.RLock()
	lim := tl.buckets[taskType]
	tl.mu.RUnlock()

	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

// limit reports the configured rate for a task type, with false for
// unlimited types.
func (tl *typeLimits) limit(taskType string) (float64, bool) {
	tl.mu.RLock()
	defer tl.mu.RUnlock()

	lim, ok := tl.buckets[taskType]
	if !ok {
		return 0, false
	}
	return float64(lim.Limit()), true
}
