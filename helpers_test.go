package taskpool_test

import (
	"context"
	"testing"
	"time"

	tp "github.com/azargarov/taskpool"
)

var fastRetry = tp.RetryPolicy{Base: 10 * time.Millisecond}

func newTestScheduler(t *testing.T, cfg tp.Config) *tp.Scheduler {
	t.Helper()

	s := tp.NewScheduler(cfg)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown(5 * time.Second) })
	return s
}

// instantTask runs to success immediately.
func instantTask(id, taskType string) tp.Task {
	return tp.Task{
		ID:   id,
		Type: taskType,
		Execute: func(context.Context, chan<- int) error {
			return nil
		},
	}
}

// sleepTask sleeps d, honouring cancellation.
func sleepTask(id string, d time.Duration) tp.Task {
	return tp.Task{
		ID: id,
		Execute: func(ctx context.Context, _ chan<- int) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// gateTask signals started and then blocks until release is closed.
func gateTask(id string, started, release chan struct{}) tp.Task {
	return tp.Task{
		ID: id,
		Execute: func(ctx context.Context, _ chan<- int) error {
			close(started)
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

func awaitResult(t *testing.T, ch <-chan tp.Result, timeout time.Duration) tp.Result {
	t.Helper()

	select {
	case res := <-ch:
		return res
	case <-time.After(timeout):
		t.Fatal("no result before timeout")
		return tp.Result{}
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before timeout")
}
