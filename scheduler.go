package taskpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler owns a fixed pool of worker goroutines consuming a shared
// priority queue. It deduplicates in-flight task IDs, gates execution
// starts per task type, retries failures with exponential backoff and
// shuts down in two phases. Multiple independent Schedulers can coexist
// in one process.
type Scheduler struct {
	cfg Config
	log *zap.Logger

	// mu guards the queue, the registry, the sequence counter, the
	// retry timers, the inflight count and the lifecycle flags below.
	mu       sync.Mutex
	notEmpty *sync.Cond // queue gained an item, or shutdown
	notFull  *sync.Cond // queue freed a slot, or shutdown

	queue *pqueue
	reg   *registry
	seq   uint64

	// inflight counts popped items that have not settled yet: rate
	// waiting, executing, or between attempt end and retry scheduling.
	inflight int

	// retries holds the pending backoff timers, keyed by item seq.
	retries map[uint64]*time.Timer

	started        bool
	draining       bool // shutdown begun: refuse new submissions
	stopped        bool // hard cutoff: workers exit
	drainSignalled bool
	drained        chan struct{} // closed when nothing is left outstanding
	stopDone       chan struct{} // closed when the first Shutdown finishes

	// runCtx is the parent of every attempt context and rate wait. The
	// hard cutoff cancels it.
	runCtx    context.Context
	cancelRun context.CancelFunc

	wg sync.WaitGroup

	limits *typeLimits
	stats  counters
}

// NewScheduler builds a Scheduler from cfg. The pool is inert until
// Start; tasks submitted before Start wait in the queue.
func NewScheduler(cfg Config) *Scheduler {
	cfg.FillDefaults()

	s := &Scheduler{
		cfg:      cfg,
		log:      cfg.Logger,
		queue:    newPQueue(),
		reg:      newRegistry(),
		retries:  make(map[uint64]*time.Timer),
		drained:  make(chan struct{}),
		stopDone: make(chan struct{}),
		limits:   newTypeLimits(),
	}
	s.notEmpty = sync.NewCond(&s.mu)
	s.notFull = sync.NewCond(&s.mu)
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	return s
}

// Start launches the worker goroutines. It is idempotent: repeated
// calls never grow the pool beyond WorkerCount. Start after Shutdown is
// a no-op; schedulers are not restartable.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.draining {
		return
	}
	s.started = true

	s.wg.Add(s.cfg.WorkerCount)
	for range s.cfg.WorkerCount {
		go s.worker()
	}
	s.log.Info("scheduler started",
		zap.Int("workers", s.cfg.WorkerCount),
		zap.Int("max_queue", s.cfg.MaxQueueSize))
}

// Submit queues a task and returns the channel its terminal Result will
// be delivered on, the task's progress channel, and an error when the
// task was not accepted.
//
// Submitting an ID that is already in flight coalesces: the original
// channels come back and nothing new is queued. With BlockOnFull unset
// a full queue fails fast with ErrQueueFull and leaves no trace; set,
// Submit blocks until a slot frees up or shutdown begins.
func (s *Scheduler) Submit(t Task) (<-chan Result, <-chan int, error) {
	if t.Execute == nil {
		return nil, nil, ErrNilExecute
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.MaxRetries < 0 {
		t.MaxRetries = 0
	}

	s.mu.Lock()
	for {
		if s.draining {
			s.mu.Unlock()
			return nil, nil, ErrSchedulerClosed
		}
		if e, ok := s.reg.lookup(t.ID); ok {
			// a coalescing waiter may have consumed a freed-slot wakeup
			// without taking the slot; pass it on
			s.notFull.Signal()
			s.mu.Unlock()
			s.log.Debug("duplicate submit coalesced", zap.String("id", t.ID))
			return e.result, e.progress, nil
		}
		if s.queue.len() < s.cfg.MaxQueueSize {
			break
		}
		if !s.cfg.BlockOnFull {
			s.mu.Unlock()
			s.cfg.Metrics.TaskRejected(t.Type)
			s.log.Debug("submit rejected, queue full",
				zap.String("id", t.ID), zap.String("type", t.Type))
			return nil, nil, ErrQueueFull
		}
		s.notFull.Wait()
	}

	e := s.reg.insert(t.ID)
	it := &queueItem{task: t, seq: s.seq, entry: e}
	s.seq++
	s.queue.push(it)
	s.stats.submitted.Add(1)
	s.notEmpty.Signal()
	s.mu.Unlock()

	s.cfg.Metrics.TaskSubmitted(t.Type)
	s.log.Debug("task submitted",
		zap.String("id", t.ID),
		zap.String("type", t.Type),
		zap.Stringer("priority", t.Priority))
	return e.result, e.progress, nil
}

// SetRateLimit installs or updates the execution-start rate for a task
// type, in tokens per second. Zero or negative removes the limit. Every
// type is unlimited until configured. Changes apply from the next token
// acquisition; rate limiting never delays Submit itself.
func (s *Scheduler) SetRateLimit(taskType string, tokensPerSecond float64) {
	s.limits.set(taskType, tokensPerSecond)
	s.log.Debug("rate limit updated",
		zap.String("type", taskType),
		zap.Float64("per_second", tokensPerSecond))
}

// RateLimit reports the configured rate for a task type. ok is false
// for unlimited types.
func (s *Scheduler) RateLimit(taskType string) (perSecond float64, ok bool) {
	return s.limits.limit(taskType)
}

// Stats returns a consistent point-in-time snapshot of the scheduler
// counters. Safe to call from any goroutine at any time.
func (s *Scheduler) Stats() Stats { return s.stats.snapshot() }

// QueueLen reports how many tasks are queued and not yet dispatched.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// Workers returns the configured pool size.
func (s *Scheduler) Workers() int { return s.cfg.WorkerCount }

// Shutdown stops the scheduler in two phases.
//
// Phase one refuses new submissions while queued tasks, executing
// attempts and pending retries drain. If everything settles within
// timeout, Shutdown tears the pool down and returns nil. Otherwise
// phase two cancels every outstanding attempt context and rate wait,
// stops pending retry timers, drops whatever was still queued and
// joins the workers; abandoned tasks get no further channel writes.
// The join is prompt even when task bodies ignore cancellation, so
// Shutdown returns no later than timeout plus scheduling overhead.
//
// timeout <= 0 waits for a full drain with no cutoff. The returned
// error is nil after a clean drain, wraps context.DeadlineExceeded
// when the cutoff fired, and is ErrSchedulerClosed for repeat calls.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		<-s.stopDone
		return ErrSchedulerClosed
	}
	s.draining = true
	started := s.started
	s.maybeDrainedLocked()
	s.notFull.Broadcast() // wake blocked Submits so they refuse
	s.mu.Unlock()

	s.log.Info("shutdown: draining", zap.Duration("timeout", timeout))

	var overrun bool
	if started {
		if timeout > 0 {
			tmr := time.NewTimer(timeout)
			select {
			case <-s.drained:
				tmr.Stop()
			case <-tmr.C:
				overrun = true
			}
		} else {
			<-s.drained
		}
	}
	// Never started: nothing can make progress, go straight to teardown.

	s.cancelRun()

	s.mu.Lock()
	s.stopped = true
	for seq, tmr := range s.retries {
		tmr.Stop()
		delete(s.retries, seq)
	}
	var dropped int
	for {
		it, ok := s.queue.pop()
		if !ok {
			break
		}
		s.reg.remove(it.task.ID)
		dropped++
	}
	s.notEmpty.Broadcast()
	s.notFull.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
	close(s.stopDone)

	if overrun {
		s.log.Warn("shutdown: deadline exceeded", zap.Int("dropped", dropped))
		return fmt.Errorf("taskpool: shutdown: %w", context.DeadlineExceeded)
	}
	s.log.Info("shutdown: drained")
	return nil
}

// Stop shuts down with no deadline, waiting for a full drain.
func (s *Scheduler) Stop() { _ = s.Shutdown(0) }

// maybeDrainedLocked closes the drained channel the first time the
// scheduler is draining with nothing outstanding: queue empty, no
// in-flight attempts, no pending retries.
func (s *Scheduler) maybeDrainedLocked() {
	if !s.draining || s.drainSignalled {
		return
	}
	if s.queue.len() == 0 && s.inflight == 0 && len(s.retries) == 0 {
		s.drainSignalled = true
		close(s.drained)
	}
}

// scheduleRetryLocked re-enqueues it after the backoff for the attempt
// that just failed. The timer is tracked by seq so a graceful drain
// waits for it and the hard cutoff stops it.
func (s *Scheduler) scheduleRetryLocked(it *queueItem, delay time.Duration) {
	seq := it.seq
	s.retries[seq] = time.AfterFunc(delay, func() {
		s.requeue(seq, it)
	})
}

// requeue moves a retry whose backoff expired back into the queue.
func (s *Scheduler) requeue(seq uint64, it *queueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.retries[seq]; !ok {
		return // cancelled by the hard cutoff
	}
	delete(s.retries, seq)
	if s.stopped {
		s.reg.remove(it.task.ID)
		return
	}
	s.queue.push(it)
	s.notEmpty.Signal()
}
