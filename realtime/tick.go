package realtime

import (
	"context"

	"github.com/comalice/chartkit/internal/core"
)

// TickResult is what one tick did.
type TickResult struct {
	Tick    uint64
	Reports []core.TransitionReport
	Errors  []error
}

// Changed reports whether any macrostep of the tick changed the configuration.
func (r TickResult) Changed() bool {
	for _, rep := range r.Reports {
		if rep.Changed() {
			return true
		}
	}
	return false
}

// Tick dispatches the queued batch and returns what happened. Errors are
// logged and collected; the remaining events of the batch still run.
func (rt *Runtime) Tick(ctx context.Context) TickResult {
	events := rt.collectEvents()
	sortEvents(events)

	rt.machineMu.Lock()
	defer rt.machineMu.Unlock()

	rt.batchMu.Lock()
	rt.tickNum++
	res := TickResult{Tick: rt.tickNum}
	rt.batchMu.Unlock()

	for _, em := range events {
		report, err := rt.machine.Send(ctx, em.Event)
		res.Reports = append(res.Reports, report)
		if err != nil {
			rt.logger.Warn("tick event failed", "tick", res.Tick, "event", em.Event.Type, "error", err)
			res.Errors = append(res.Errors, err)
		}
	}
	if rt.onTick != nil {
		rt.onTick(res)
	}
	return res
}

// collectEvents atomically retrieves and clears the event batch.
func (rt *Runtime) collectEvents() []EventWithMeta {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	events := rt.eventBatch
	rt.eventBatch = make([]EventWithMeta, 0, rt.maxEvents)
	return events
}
