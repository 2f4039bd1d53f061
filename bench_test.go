package taskpool_test

import (
	"context"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	tp "github.com/azargarov/taskpool"
)

func BenchmarkSubmitThroughput(b *testing.B) {
	s := tp.NewScheduler(tp.Config{
		WorkerCount:  runtime.GOMAXPROCS(0),
		MaxQueueSize: 1 << 16,
		BlockOnFull:  true,
	})
	s.Start()

	var id atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := id.Add(1)
			_, _, err := s.Submit(tp.Task{
				ID: strconv.FormatUint(n, 10),
				Execute: func(context.Context, chan<- int) error {
					return nil
				},
			})
			if err != nil {
				b.Fatalf("submit: %v", err)
			}
		}
	})
	b.StopTimer()
	s.Stop()
}

func BenchmarkEndToEndLatency(b *testing.B) {
	s := tp.NewScheduler(tp.Config{
		WorkerCount:  runtime.GOMAXPROCS(0),
		MaxQueueSize: 256,
	})
	s.Start()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, _, err := s.Submit(tp.Task{
			ID: strconv.Itoa(i),
			Execute: func(context.Context, chan<- int) error {
				return nil
			},
		})
		if err != nil {
			b.Fatalf("submit: %v", err)
		}
		select {
		case <-res:
		case <-time.After(5 * time.Second):
			b.Fatal("no result")
		}
	}
	b.StopTimer()
	s.Stop()
}
