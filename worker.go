package taskpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// worker is one long-lived pool goroutine: wait for an item, run one
// attempt, settle it, repeat. Workers exit only at the hard cutoff.
func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for s.queue.len() == 0 && !s.stopped {
			s.notEmpty.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		it, _ := s.queue.pop()
		s.inflight++
		s.notFull.Signal()
		s.mu.Unlock()

		s.runTask(it)
	}
}

// runTask drives one dispatch cycle of an item: rate gate, attempt,
// then terminal delivery or retry scheduling.
func (s *Scheduler) runTask(it *queueItem) {
	t := it.task

	// The rate gate sits between dequeue and the attempt so limits
	// govern execution start, not submission. Retries pass it again.
	if err := s.limits.wait(s.runCtx, t.Type); err != nil {
		s.abandon(it, "rate wait cancelled")
		return
	}

	it.attempt++
	start := time.Now()
	s.stats.running.Add(1)
	err := s.runAttempt(it)
	s.stats.running.Add(-1)
	elapsed := time.Since(start)

	if err == nil {
		s.settle(it, StateCompleted, nil, elapsed)
		return
	}

	// A cancelled runCtx means the hard cutoff interrupted the attempt:
	// the task is abandoned, not failed.
	if errors.Is(err, context.Canceled) && s.runCtx.Err() != nil {
		s.abandon(it, "attempt cancelled")
		return
	}

	it.errs = multierr.Append(it.errs, err)

	if it.attempt <= t.MaxRetries {
		delay := s.cfg.Retry.Delay(it.attempt)

		s.mu.Lock()
		s.inflight--
		if s.stopped {
			s.reg.remove(t.ID)
			s.mu.Unlock()
			return
		}
		s.scheduleRetryLocked(it, delay)
		s.mu.Unlock()

		s.cfg.Metrics.TaskRetried(t.Type)
		s.log.Warn("attempt failed, retry scheduled",
			zap.String("id", t.ID),
			zap.Int("attempt", it.attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		return
	}

	s.settle(it, StateFailed, it.errs, elapsed)
}

// runAttempt executes one attempt with the body isolated in its own
// goroutine, so a body that ignores cancellation cannot wedge the
// worker past the attempt deadline or the hard cutoff. Panics inside
// the body become ordinary attempt errors and the worker survives.
func (s *Scheduler) runAttempt(it *queueItem) error {
	t := it.task
	attempt := it.attempt
	progress := it.entry.progress

	var ctx context.Context
	var cancel context.CancelFunc
	if t.Timeout > 0 {
		ctx, cancel = context.WithTimeout(s.runCtx, t.Timeout)
	} else {
		ctx, cancel = context.WithCancel(s.runCtx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.cfg.Metrics.TaskPanicked(t.Type)
				s.log.Error("task panicked",
					zap.String("id", t.ID),
					zap.Int("attempt", attempt),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- t.Execute(ctx, progress)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The body keeps running until it honours ctx; it is detached
		// here and its eventual return value is discarded.
		return ctx.Err()
	}
}

// settle delivers the terminal result and retires the task. Counters,
// delivery and registry removal share one critical section, so a reader
// that received the result observes the counters already bumped and a
// racing Submit never sees a delivered-but-present ID.
func (s *Scheduler) settle(it *queueItem, state State, err error, elapsed time.Duration) {
	res := Result{State: state, Err: err, Attempts: it.attempt}

	s.mu.Lock()
	if state == StateCompleted {
		s.stats.completed.Add(1)
	} else {
		s.stats.failed.Add(1)
	}
	it.entry.result <- res
	s.reg.remove(it.task.ID)
	s.inflight--
	s.maybeDrainedLocked()
	s.mu.Unlock()

	if state == StateCompleted {
		s.cfg.Metrics.TaskCompleted(it.task.Type, elapsed)
		s.log.Debug("task completed",
			zap.String("id", it.task.ID),
			zap.Int("attempts", it.attempt))
		return
	}
	s.cfg.Metrics.TaskFailed(it.task.Type, elapsed)
	s.log.Warn("task failed",
		zap.String("id", it.task.ID),
		zap.Int("attempts", it.attempt),
		zap.Error(err))
}

// abandon drops an item the hard cutoff interrupted. No result is
// delivered and its channels receive no further writes.
func (s *Scheduler) abandon(it *queueItem, reason string) {
	s.mu.Lock()
	s.reg.remove(it.task.ID)
	s.inflight--
	s.mu.Unlock()

	s.log.Warn("task abandoned",
		zap.String("id", it.task.ID),
		zap.String("reason", reason))
}
