package realtime

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

// counterMachine: idle --GO--> running --STOP--> idle; every event appends
// its type to ctx "log".
func counterMachine(t *testing.T) *core.Machine {
	t.Helper()
	record := func(ctx *primitives.Context, e primitives.Event) {
		v, _ := ctx.Get("log")
		log, _ := v.([]string)
		ctx.Set("log", append(log, e.Type))
	}
	mb := primitives.NewMachineBuilder("counter", "idle")
	mb.Atomic("idle").
		On("GO", primitives.TransitionConfig{Target: "running", Actions: []primitives.ActionRef{record}}).
		On("*", primitives.TransitionConfig{Actions: []primitives.ActionRef{record}})
	mb.Atomic("running").
		On("STOP", primitives.TransitionConfig{Target: "idle", Actions: []primitives.ActionRef{record}}).
		On("*", primitives.TransitionConfig{Actions: []primitives.ActionRef{record}})
	def, err := core.NewDefinition(mb.MustBuild())
	if err != nil {
		t.Fatalf("Failed to create definition: %v", err)
	}
	return core.NewMachine(def)
}

func eventLog(m *core.Machine) []string {
	v, _ := m.Context().Get("log")
	log, _ := v.([]string)
	return log
}

func TestRuntimeDefaults(t *testing.T) {
	rt := NewRuntime(counterMachine(t), Config{})
	if rt.tickRate != 16667*time.Microsecond {
		t.Errorf("Expected default tick rate, got %v", rt.tickRate)
	}
	if rt.maxEvents != 1000 {
		t.Errorf("Expected default capacity 1000, got %d", rt.maxEvents)
	}
}

// TestTickLoopTiming tests that the tick loop runs at roughly the configured rate
func TestTickLoopTiming(t *testing.T) {
	rt := NewRuntime(counterMachine(t), Config{TickRate: 10 * time.Millisecond})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()

	time.Sleep(105 * time.Millisecond)
	ticks := rt.TickNumber()
	if ticks < 5 || ticks > 12 {
		t.Errorf("Expected ~10 ticks, got %d", ticks)
	}
}

func TestSimpleTransition(t *testing.T) {
	done := make(chan TickResult, 16)
	rt := NewRuntime(counterMachine(t), Config{
		TickRate: 5 * time.Millisecond,
		OnTick: func(r TickResult) {
			if r.Changed() {
				done <- r
			}
		},
	})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()

	if got := rt.Configuration(); !reflect.DeepEqual(got, []string{"idle"}) {
		t.Fatalf("Expected [idle], got %v", got)
	}
	if err := rt.SendEvent(primitives.NewEvent("GO", nil)); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}

	select {
	case r := <-done:
		if len(r.Reports) != 1 || r.Reports[0].Event.Type != "GO" {
			t.Errorf("Unexpected tick result %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("Transition never happened")
	}
	if !rt.Matches("running") {
		t.Errorf("Expected running, got %v", rt.Configuration())
	}
}

// TestEventOrdering checks that a batch runs by priority, then FIFO.
func TestEventOrdering(t *testing.T) {
	m := counterMachine(t)
	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start machine: %v", err)
	}
	rt := NewRuntime(m, Config{})

	rt.SendEvent(primitives.NewEvent("a", nil))
	rt.SendEvent(primitives.NewEvent("STOP", nil))
	rt.SendEventWithPriority(primitives.NewEvent("GO", nil), 10)
	rt.SendEvent(primitives.NewEvent("b", nil))
	rt.SendEventWithPriority(primitives.NewEvent("c", nil), 5)

	res := rt.Tick(context.Background())
	if res.Tick != 1 {
		t.Errorf("Expected tick 1, got %d", res.Tick)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("Unexpected errors: %v", res.Errors)
	}

	want := []string{"GO", "c", "a", "STOP", "b"}
	if got := eventLog(m); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := rt.Configuration(); !reflect.DeepEqual(got, []string{"idle"}) {
		t.Errorf("Expected [idle], got %v", got)
	}
}

// TestDeterminism replays the same concurrent submissions twice.
func TestDeterminism(t *testing.T) {
	run := func() []string {
		m := counterMachine(t)
		if _, err := m.Start(context.Background()); err != nil {
			t.Fatalf("Failed to start machine: %v", err)
		}
		rt := NewRuntime(m, Config{})
		for i := 0; i < 20; i++ {
			typ := "x"
			if i%3 == 0 {
				typ = "GO"
			} else if i%3 == 1 {
				typ = "STOP"
			}
			rt.SendEventWithPriority(primitives.NewEvent(typ, nil), i%2)
		}
		rt.Tick(context.Background())
		return append(eventLog(m), rt.Configuration()...)
	}
	first := run()
	if second := run(); !reflect.DeepEqual(first, second) {
		t.Errorf("Runs diverged:\n%v\n%v", first, second)
	}
}

func TestConcurrentSend(t *testing.T) {
	rt := NewRuntime(counterMachine(t), Config{TickRate: time.Millisecond})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := rt.SendEvent(primitives.NewEvent("x", j)); err != nil {
					t.Errorf("send: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for rt.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := rt.Stop(); err != nil {
		t.Fatalf("Failed to stop runtime: %v", err)
	}
	if rt.Pending() != 0 {
		t.Errorf("Expected empty queue, got %d", rt.Pending())
	}
}

// TestEventBatching tests the batch capacity.
func TestEventBatching(t *testing.T) {
	m := counterMachine(t)
	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start machine: %v", err)
	}
	rt := NewRuntime(m, Config{MaxEventsPerTick: 5})

	for i := 0; i < 5; i++ {
		if err := rt.SendEvent(primitives.NewEvent("x", i)); err != nil {
			t.Errorf("Failed to send event %d: %v", i, err)
		}
	}
	if err := rt.SendEvent(primitives.NewEvent("x", 5)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	rt.Tick(context.Background())
	if err := rt.SendEvent(primitives.NewEvent("x", 6)); err != nil {
		t.Errorf("Failed to send event after tick: %v", err)
	}
}

func TestTickCollectsErrors(t *testing.T) {
	rt := NewRuntime(counterMachine(t), Config{})
	rt.SendEvent(primitives.NewEvent("GO", nil))

	res := rt.Tick(context.Background())
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], core.ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", res.Errors)
	}
}

func TestEventSorting(t *testing.T) {
	events := []EventWithMeta{
		{Event: primitives.NewEvent("1", nil), SequenceNum: 3, Priority: 0},
		{Event: primitives.NewEvent("2", nil), SequenceNum: 1, Priority: 0},
		{Event: primitives.NewEvent("3", nil), SequenceNum: 2, Priority: 10},
		{Event: primitives.NewEvent("4", nil), SequenceNum: 4, Priority: 0},
		{Event: primitives.NewEvent("5", nil), SequenceNum: 5, Priority: 5},
	}
	sortEvents(events)

	expected := []string{"3", "5", "2", "1", "4"}
	for i, e := range events {
		if e.Event.Type != expected[i] {
			t.Errorf("Event at position %d: expected %s, got %s", i, expected[i], e.Event.Type)
		}
	}
}

func TestStartTwice(t *testing.T) {
	rt := NewRuntime(counterMachine(t), Config{TickRate: time.Millisecond})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()
	if err := rt.Start(context.Background()); err == nil {
		t.Error("Expected error on second Start")
	}
}
