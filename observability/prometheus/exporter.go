// Package prometheus exposes scheduler activity as Prometheus metrics.
//
// Two collectors are provided. MetricsExporter plugs into the scheduler
// as its Metrics sink and counts task events as they happen.
// SnapshotPoller samples the scheduler's aggregate counters and queue
// depth on an interval, for dashboards that want gauges rather than
// event streams.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/azargarov/taskpool"
)

// Config controls where and under which namespace collectors register.
type Config struct {
	// Namespace prefixes every metric name. Defaults to "taskpool".
	Namespace string
	// Registry receives the collectors. Defaults to
	// prom.DefaultRegisterer.
	Registry prom.Registerer
}

func (c *Config) fillDefaults() {
	if c.Namespace == "" {
		c.Namespace = "taskpool"
	}
	if c.Registry == nil {
		c.Registry = prom.DefaultRegisterer
	}
}

// registerCollector registers c, reusing an identical collector that is
// already present in the registry.
func registerCollector[T prom.Collector](reg prom.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		are := prom.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

//------------- MetricsExporter ------------------------------------

// MetricsExporter implements taskpool.Metrics on top of Prometheus
// counters and histograms, labelled by task type. Pass it to the
// scheduler through Config.Metrics.
type MetricsExporter struct {
	submitted *prom.CounterVec
	rejected  *prom.CounterVec
	retries   *prom.CounterVec
	panics    *prom.CounterVec
	duration  *prom.HistogramVec
}

var _ taskpool.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter builds the collectors and registers them with
// cfg.Registry.
func NewMetricsExporter(cfg Config) (*MetricsExporter, error) {
	cfg.fillDefaults()

	e := &MetricsExporter{}
	var err error

	e.submitted, err = registerCollector(cfg.Registry, prom.NewCounterVec(prom.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "tasks_submitted_total",
		Help:      "Tasks accepted into the queue.",
	}, []string{"type"}))
	if err != nil {
		return nil, fmt.Errorf("register submitted counter: %w", err)
	}

	e.rejected, err = registerCollector(cfg.Registry, prom.NewCounterVec(prom.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "tasks_rejected_total",
		Help:      "Submissions refused because the queue was full.",
	}, []string{"type"}))
	if err != nil {
		return nil, fmt.Errorf("register rejected counter: %w", err)
	}

	e.retries, err = registerCollector(cfg.Registry, prom.NewCounterVec(prom.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "task_retries_total",
		Help:      "Attempts re-enqueued after a failure.",
	}, []string{"type"}))
	if err != nil {
		return nil, fmt.Errorf("register retries counter: %w", err)
	}

	e.panics, err = registerCollector(cfg.Registry, prom.NewCounterVec(prom.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "task_panics_total",
		Help:      "Attempts that ended in a recovered panic.",
	}, []string{"type"}))
	if err != nil {
		return nil, fmt.Errorf("register panics counter: %w", err)
	}

	e.duration, err = registerCollector(cfg.Registry, prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: cfg.Namespace,
		Name:      "task_duration_seconds",
		Help:      "Final attempt duration, labelled by terminal outcome.",
		Buckets:   prom.DefBuckets,
	}, []string{"type", "outcome"}))
	if err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}

	return e, nil
}

func (e *MetricsExporter) TaskSubmitted(taskType string) {
	e.submitted.WithLabelValues(taskType).Inc()
}

func (e *MetricsExporter) TaskRejected(taskType string) {
	e.rejected.WithLabelValues(taskType).Inc()
}

func (e *MetricsExporter) TaskRetried(taskType string) {
	e.retries.WithLabelValues(taskType).Inc()
}

func (e *MetricsExporter) TaskPanicked(taskType string) {
	e.panics.WithLabelValues(taskType).Inc()
}

func (e *MetricsExporter) TaskCompleted(taskType string, d time.Duration) {
	e.duration.WithLabelValues(taskType, string(taskpool.StateCompleted)).Observe(d.Seconds())
}

func (e *MetricsExporter) TaskFailed(taskType string, d time.Duration) {
	e.duration.WithLabelValues(taskType, string(taskpool.StateFailed)).Observe(d.Seconds())
}
