package prometheus

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/azargarov/taskpool"
)

func TestExporterCountsEvents(t *testing.T) {
	reg := prom.NewRegistry()
	e, err := NewMetricsExporter(Config{Registry: reg})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	e.TaskSubmitted("email")
	e.TaskSubmitted("email")
	e.TaskSubmitted("report")
	e.TaskRejected("email")
	e.TaskRetried("email")
	e.TaskPanicked("report")

	if got := testutil.ToFloat64(e.submitted.WithLabelValues("email")); got != 2 {
		t.Fatalf("submitted{email} = %v; want 2", got)
	}
	if got := testutil.ToFloat64(e.submitted.WithLabelValues("report")); got != 1 {
		t.Fatalf("submitted{report} = %v; want 1", got)
	}
	if got := testutil.ToFloat64(e.rejected.WithLabelValues("email")); got != 1 {
		t.Fatalf("rejected{email} = %v; want 1", got)
	}
	if got := testutil.ToFloat64(e.retries.WithLabelValues("email")); got != 1 {
		t.Fatalf("retries{email} = %v; want 1", got)
	}
	if got := testutil.ToFloat64(e.panics.WithLabelValues("report")); got != 1 {
		t.Fatalf("panics{report} = %v; want 1", got)
	}
}

// durationSample digs the histogram for one type/outcome pair out of a
// fresh gather.
func durationSample(t *testing.T, reg *prom.Registry, taskType, outcome string) *dto.Histogram {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "taskpool_task_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["type"] == taskType && labels["outcome"] == outcome {
				return m.GetHistogram()
			}
		}
	}
	t.Fatalf("no duration sample for type=%q outcome=%q", taskType, outcome)
	return nil
}

func TestExporterObservesDurationsByOutcome(t *testing.T) {
	reg := prom.NewRegistry()
	e, err := NewMetricsExporter(Config{Registry: reg})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	e.TaskCompleted("email", 250*time.Millisecond)
	e.TaskFailed("email", time.Second)

	completed := durationSample(t, reg, "email", "completed")
	if completed.GetSampleCount() != 1 {
		t.Fatalf("completed samples = %d; want 1", completed.GetSampleCount())
	}
	if got := completed.GetSampleSum(); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("completed sum = %v; want 0.25", got)
	}

	failed := durationSample(t, reg, "email", "failed")
	if failed.GetSampleCount() != 1 {
		t.Fatalf("failed samples = %d; want 1", failed.GetSampleCount())
	}
	if got := failed.GetSampleSum(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("failed sum = %v; want 1.0", got)
	}
}

func TestExporterReusesRegisteredCollectors(t *testing.T) {
	reg := prom.NewRegistry()
	e1, err := NewMetricsExporter(Config{Registry: reg})
	if err != nil {
		t.Fatalf("first exporter: %v", err)
	}
	e2, err := NewMetricsExporter(Config{Registry: reg})
	if err != nil {
		t.Fatalf("second exporter on the same registry: %v", err)
	}

	e1.TaskSubmitted("x")
	e2.TaskSubmitted("x")
	if got := testutil.ToFloat64(e1.submitted.WithLabelValues("x")); got != 2 {
		t.Fatalf("submitted{x} = %v; want 2 (both exporters share one vec)", got)
	}
}

func TestExporterWiredIntoScheduler(t *testing.T) {
	reg := prom.NewRegistry()
	e, err := NewMetricsExporter(Config{Registry: reg})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	s := taskpool.NewScheduler(taskpool.Config{
		WorkerCount:  2,
		MaxQueueSize: 8,
		Retry:        taskpool.RetryPolicy{Base: 10 * time.Millisecond},
		Metrics:      e,
	})
	s.Start()
	defer s.Stop()

	okRes, _, err := s.Submit(taskpool.Task{
		ID:   "ok",
		Type: "job",
		Execute: func(context.Context, chan<- int) error {
			return nil
		},
	})
	if err != nil {
		t.Fatalf("submit ok: %v", err)
	}
	var attempts atomic.Int32
	badRes, _, err := s.Submit(taskpool.Task{
		ID:         "bad",
		Type:       "job",
		MaxRetries: 1,
		Execute: func(context.Context, chan<- int) error {
			attempts.Add(1)
			return errors.New("always fails")
		},
	})
	if err != nil {
		t.Fatalf("submit bad: %v", err)
	}

	for _, ch := range []<-chan taskpool.Result{okRes, badRes} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("no result before timeout")
		}
	}

	if got := testutil.ToFloat64(e.submitted.WithLabelValues("job")); got != 2 {
		t.Fatalf("submitted{job} = %v; want 2", got)
	}
	if got := testutil.ToFloat64(e.retries.WithLabelValues("job")); got != 1 {
		t.Fatalf("retries{job} = %v; want 1", got)
	}
	if got := durationSample(t, reg, "job", "completed").GetSampleCount(); got != 1 {
		t.Fatalf("completed samples = %d; want 1", got)
	}
	if got := durationSample(t, reg, "job", "failed").GetSampleCount(); got != 1 {
		t.Fatalf("failed samples = %d; want 1", got)
	}
}
