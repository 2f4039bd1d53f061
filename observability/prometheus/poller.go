package prometheus

import (
	"context"
	"fmt"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/azargarov/taskpool"
)

const defaultPollInterval = 10 * time.Second

// StatsProvider is the slice of the scheduler the poller samples.
// *taskpool.Scheduler satisfies it.
type StatsProvider interface {
	Stats() taskpool.Stats
	QueueLen() int
}

//------------- SnapshotPoller -------------------------------------

// SnapshotPoller periodically copies the scheduler's counters and queue
// depth into Prometheus gauges. One sample is taken immediately on
// Start, then one per interval until Stop.
type SnapshotPoller struct {
	src      StatsProvider
	interval time.Duration

	submitted prom.Gauge
	running   prom.Gauge
	completed prom.Gauge
	failed    prom.Gauge
	depth     prom.Gauge

	stateMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller registers the gauges with cfg.Registry. A
// non-positive interval falls back to 10s.
func NewSnapshotPoller(src StatsProvider, interval time.Duration, cfg Config) (*SnapshotPoller, error) {
	cfg.fillDefaults()
	if interval <= 0 {
		interval = defaultPollInterval
	}

	p := &SnapshotPoller{src: src, interval: interval}
	var err error

	gauge := func(name, help string) (prom.Gauge, error) {
		return registerCollector(cfg.Registry, prom.NewGauge(prom.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      name,
			Help:      help,
		}))
	}

	if p.submitted, err = gauge("tasks_submitted", "Snapshot of accepted submissions."); err != nil {
		return nil, fmt.Errorf("register submitted gauge: %w", err)
	}
	if p.running, err = gauge("tasks_running", "Snapshot of attempts executing right now."); err != nil {
		return nil, fmt.Errorf("register running gauge: %w", err)
	}
	if p.completed, err = gauge("tasks_completed", "Snapshot of tasks that finished successfully."); err != nil {
		return nil, fmt.Errorf("register completed gauge: %w", err)
	}
	if p.failed, err = gauge("tasks_failed", "Snapshot of tasks that exhausted their attempts."); err != nil {
		return nil, fmt.Errorf("register failed gauge: %w", err)
	}
	if p.depth, err = gauge("queue_depth", "Tasks waiting in the queue."); err != nil {
		return nil, fmt.Errorf("register depth gauge: %w", err)
	}

	return p, nil
}

// Start launches the sampling loop. Calling Start on a running poller
// is a no-op.
func (p *SnapshotPoller) Start(ctx context.Context) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.started {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.started = true
	go p.loop(ctx, p.done)
}

// Stop halts the loop and waits for it to exit. The poller can be
// started again afterwards.
func (p *SnapshotPoller) Stop() {
	p.stateMu.Lock()
	if !p.started {
		p.stateMu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.stateMu.Lock()
	p.started = false
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	p.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.collect()
		}
	}
}

func (p *SnapshotPoller) collect() {
	st := p.src.Stats()
	p.submitted.Set(float64(st.Submitted))
	p.running.Set(float64(st.Running))
	p.completed.Set(float64(st.Completed))
	p.failed.Set(float64(st.Failed))
	p.depth.Set(float64(p.src.QueueLen()))
}
