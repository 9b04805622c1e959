package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/logging"
	"github.com/comalice/chartkit/internal/primitives"
)

// ErrQueueFull is returned by SendEvent when the batch for the next tick is
// at capacity.
var ErrQueueFull = errors.New("event queue full")

// Runtime batches events and feeds them to a Machine at fixed tick
// boundaries.
type Runtime struct {
	machine   *core.Machine
	machineMu sync.Mutex

	tickRate time.Duration
	tickNum  uint64
	logger   *slog.Logger
	onTick   func(TickResult)

	// Event batching
	eventBatch  []EventWithMeta
	batchMu     sync.Mutex
	sequenceNum uint64
	maxEvents   int

	// Control
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Config configures the runtime.
type Config struct {
	TickRate         time.Duration // Fixed tick rate (default 16.67ms, 60 FPS)
	MaxEventsPerTick int           // Batch capacity (default 1000)
	Logger           *slog.Logger
	OnTick           func(TickResult) // Called after every tick, on the tick goroutine
}

// NewRuntime wraps machine. The machine must not be driven from anywhere
// else once the runtime owns it.
func NewRuntime(machine *core.Machine, cfg Config) *Runtime {
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = 1000
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 16667 * time.Microsecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Runtime{
		machine:    machine,
		tickRate:   cfg.TickRate,
		logger:     cfg.Logger,
		onTick:     cfg.OnTick,
		eventBatch: make([]EventWithMeta, 0, cfg.MaxEventsPerTick),
		maxEvents:  cfg.MaxEventsPerTick,
	}
}

// Start starts the machine and begins tick-based execution.
func (rt *Runtime) Start(ctx context.Context) error {
	if rt.stopped != nil {
		return errors.New("runtime already started")
	}
	rt.machineMu.Lock()
	_, err := rt.machine.Start(ctx)
	rt.machineMu.Unlock()
	if err != nil {
		return fmt.Errorf("start machine: %w", err)
	}

	tickCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.stopped = make(chan struct{})
	go rt.tickLoop(tickCtx)
	rt.logger.Debug("realtime runtime started", "machine", rt.machine.ID(), "tick_rate", rt.tickRate)
	return nil
}

// Stop ends the tick loop, waits for it and stops the machine. Events still
// queued are discarded.
func (rt *Runtime) Stop() error {
	if rt.cancel != nil {
		rt.cancel()
		<-rt.stopped
	}
	return rt.machine.Stop()
}

func (rt *Runtime) tickLoop(ctx context.Context) {
	defer close(rt.stopped)
	ticker := time.NewTicker(rt.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.safeTick(ctx)
		}
	}
}

func (rt *Runtime) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("tick panicked", "panic", r)
		}
	}()
	rt.Tick(ctx)
}

// SendEvent queues an event for the next tick with priority 0.
func (rt *Runtime) SendEvent(event primitives.Event) error {
	return rt.SendEventWithPriority(event, 0)
}

// SendEventWithPriority queues an event; higher priorities run first within
// a tick.
func (rt *Runtime) SendEventWithPriority(event primitives.Event, priority int) error {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	if len(rt.eventBatch) >= rt.maxEvents {
		return ErrQueueFull
	}
	rt.eventBatch = append(rt.eventBatch, EventWithMeta{
		Event:       event,
		SequenceNum: rt.sequenceNum,
		Priority:    priority,
	})
	rt.sequenceNum++
	return nil
}

// Pending returns the number of events queued for the next tick.
func (rt *Runtime) Pending() int {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	return len(rt.eventBatch)
}

// TickNumber returns the number of ticks processed.
func (rt *Runtime) TickNumber() uint64 {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	return rt.tickNum
}

// Configuration returns the machine's active atomic states between ticks.
func (rt *Runtime) Configuration() []string {
	rt.machineMu.Lock()
	defer rt.machineMu.Unlock()
	return rt.machine.Configuration()
}

// Matches tests the machine's active states between ticks.
func (rt *Runtime) Matches(pattern string) bool {
	rt.machineMu.Lock()
	defer rt.machineMu.Unlock()
	return rt.machine.Matches(pattern)
}

// Snapshot captures the machine between ticks.
func (rt *Runtime) Snapshot() core.MachineSnapshot {
	rt.machineMu.Lock()
	defer rt.machineMu.Unlock()
	return rt.machine.Snapshot()
}
