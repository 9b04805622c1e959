// Package testutil runs the same scenarios against a machine driven
// directly and through the tick-based realtime runtime.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
	"github.com/comalice/chartkit/realtime"
)

// RuntimeAdapter provides a common interface for both event-driven and tick-based runtimes
// This allows running the same test suite on both runtimes
type RuntimeAdapter interface {
	Start(ctx context.Context) error
	Stop() error
	SendEvent(event primitives.Event) error
	Matches(pattern string) bool
	Configuration() []string
	WaitForStability(timeout time.Duration) error
}

// EventDrivenAdapter sends every event straight to the machine as its own
// macrostep.
type EventDrivenAdapter struct {
	mu      sync.Mutex
	machine *core.Machine
}

// NewEventDrivenAdapter creates a new adapter for direct dispatch.
func NewEventDrivenAdapter(machine *core.Machine) *EventDrivenAdapter {
	return &EventDrivenAdapter{machine: machine}
}

func (a *EventDrivenAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.machine.Start(ctx)
	return err
}

func (a *EventDrivenAdapter) Stop() error {
	return a.machine.Stop()
}

// SendEvent dispatches synchronously. Machine errors (failed guards or
// actions) are returned as is.
func (a *EventDrivenAdapter) SendEvent(event primitives.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.machine.Send(context.Background(), event)
	return err
}

func (a *EventDrivenAdapter) Matches(pattern string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.Matches(pattern)
}

func (a *EventDrivenAdapter) Configuration() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.Configuration()
}

// WaitForStability returns immediately: SendEvent has already applied the event.
func (a *EventDrivenAdapter) WaitForStability(time.Duration) error {
	return nil
}

// TickBasedAdapter wraps the tick-based runtime
type TickBasedAdapter struct {
	rt *realtime.Runtime
}

// NewTickBasedAdapter creates a new adapter for the tick-based runtime
func NewTickBasedAdapter(machine *core.Machine, tickRate time.Duration) *TickBasedAdapter {
	return &TickBasedAdapter{
		rt: realtime.NewRuntime(machine, realtime.Config{
			TickRate: tickRate,
		}),
	}
}

func (a *TickBasedAdapter) Start(ctx context.Context) error {
	return a.rt.Start(ctx)
}

func (a *TickBasedAdapter) Stop() error {
	return a.rt.Stop()
}

// SendEvent queues the event for the next tick.
func (a *TickBasedAdapter) SendEvent(event primitives.Event) error {
	return a.rt.SendEvent(event)
}

func (a *TickBasedAdapter) Matches(pattern string) bool {
	return a.rt.Matches(pattern)
}

func (a *TickBasedAdapter) Configuration() []string {
	return a.rt.Configuration()
}

// ErrUnstable is returned when queued events are still pending at the deadline.
var ErrUnstable = errors.New("runtime did not settle")

// WaitForStability waits until the batch is empty and two more ticks have
// begun. The second one collected its batch after this call started, and
// queries block on the machine lock until it has finished.
func (a *TickBasedAdapter) WaitForStability(timeout time.Duration) error {
	target := a.rt.TickNumber() + 2
	deadline := time.Now().Add(timeout)
	for a.rt.Pending() > 0 || a.rt.TickNumber() < target {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d pending after %v", ErrUnstable, a.rt.Pending(), timeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
