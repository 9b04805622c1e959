package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
	"github.com/comalice/chartkit/realtime"
)

// Realtime runtime benchmarks. Throughput is verified through an action
// counter rather than by counting successful sends.

func countingMachine(b *testing.B, processed *int64) *core.Machine {
	b.Helper()
	count := func(*primitives.Context, primitives.Event) { atomic.AddInt64(processed, 1) }
	mb := primitives.NewMachineBuilder("pingpong", "a")
	mb.Atomic("a").On("flip", primitives.TransitionConfig{Target: "b", Actions: []primitives.ActionRef{count}})
	mb.Atomic("b").On("flip", primitives.TransitionConfig{Target: "a", Actions: []primitives.ActionRef{count}})
	return StartMachine(b, mb.MustBuild())
}

// BenchmarkRealtimeThroughput sends through a running tick loop and waits
// until every event has been executed.
func BenchmarkRealtimeThroughput(b *testing.B) {
	var processed int64
	rt := realtime.NewRuntime(countingMachine(b, &processed), realtime.Config{
		TickRate:         time.Millisecond,
		MaxEventsPerTick: 10000,
	})
	if err := rt.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	defer rt.Stop()

	e := primitives.NewEvent("flip", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for errors.Is(rt.SendEvent(e), realtime.ErrQueueFull) {
			time.Sleep(100 * time.Microsecond)
		}
	}
	deadline := time.Now().Add(10 * time.Second)
	for atomic.LoadInt64(&processed) < int64(b.N) {
		if time.Now().After(deadline) {
			b.Fatalf("processed %d of %d events", atomic.LoadInt64(&processed), b.N)
		}
		time.Sleep(100 * time.Microsecond)
	}
	b.StopTimer()
	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "events/sec")
}

// BenchmarkRealtimeLatency measures the time from SendEvent to the end of
// the tick that applied it.
func BenchmarkRealtimeLatency(b *testing.B) {
	var processed int64
	applied := make(chan struct{}, 1)
	rt := realtime.NewRuntime(countingMachine(b, &processed), realtime.Config{
		TickRate: time.Millisecond,
		OnTick: func(r realtime.TickResult) {
			if r.Changed() {
				applied <- struct{}{}
			}
		},
	})
	if err := rt.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	defer rt.Stop()

	e := primitives.NewEvent("flip", nil)
	var total time.Duration
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		if err := rt.SendEvent(e); err != nil {
			b.Fatal(err)
		}
		select {
		case <-applied:
			total += time.Since(start)
		case <-time.After(time.Second):
			b.Fatal("event never applied")
		}
	}
	b.StopTimer()
	b.ReportMetric(float64(total.Microseconds())/float64(b.N), "µs/latency")
}

// BenchmarkRealtimeTickProcessing measures one stepped tick over a full batch.
func BenchmarkRealtimeTickProcessing(b *testing.B) {
	for _, batch := range []int{1, 100, 1000} {
		b.Run(fmt.Sprintf("batch=%d", batch), func(b *testing.B) {
			var processed int64
			rt := realtime.NewRuntime(countingMachine(b, &processed), realtime.Config{MaxEventsPerTick: batch})
			e := primitives.NewEvent("flip", nil)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				for j := 0; j < batch; j++ {
					if err := rt.SendEventWithPriority(e, j%3); err != nil {
						b.Fatal(err)
					}
				}
				b.StartTimer()
				if res := rt.Tick(ctx); len(res.Errors) > 0 {
					b.Fatal(res.Errors[0])
				}
			}
			b.StopTimer()
			if got := atomic.LoadInt64(&processed); got != int64(b.N*batch) {
				b.Fatalf("processed %d, want %d", got, b.N*batch)
			}
		})
	}
}

// BenchmarkRealtimeQueueCapacity fills the batch until backpressure.
func BenchmarkRealtimeQueueCapacity(b *testing.B) {
	var processed int64
	rt := realtime.NewRuntime(countingMachine(b, &processed), realtime.Config{})
	e := primitives.NewEvent("flip", nil)
	ctx := context.Background()

	var accepted int
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		accepted = 0
		for rt.SendEvent(e) == nil {
			accepted++
		}
		rt.Tick(ctx)
	}
	b.ReportMetric(float64(accepted), "events")
}
