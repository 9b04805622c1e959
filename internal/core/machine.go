// Package core provides the runtime core tier of the statechart engine: the
// state graph, the transition resolver, history tracking and the Machine.
//
// A Machine is synchronous and single-threaded. Send runs a whole macrostep
// (the event's transitions plus every eventless transition they enable)
// before it returns. Calls arriving while a macrostep runs are rejected with
// ErrReentrantSend; callers sharing a Machine between goroutines serialize
// access themselves.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/comalice/chartkit/internal/logging"
	"github.com/comalice/chartkit/internal/primitives"
)

// Pluggable component interfaces. Implementations live in the
// extensibility and production packages.

type ActionRunner interface {
	Run(ctx *primitives.Context, action primitives.ActionRef, event primitives.Event) error
}

type GuardEvaluator interface {
	Eval(ctx *primitives.Context, guard primitives.GuardRef, event primitives.Event) (bool, error)
}

type EventSource interface {
	Events() <-chan primitives.Event
}

type Persister interface {
	Save(ctx context.Context, snapshot MachineSnapshot) error
	Load(ctx context.Context, machineID string) (MachineSnapshot, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event primitives.Event, metadata MachineMetadata) error
	Close() error
}

type Visualizer interface {
	ExportDOT(config primitives.MachineConfig, current []string) string
	ExportJSON(config primitives.MachineConfig) ([]byte, error)
}

// Observer is notified after every macrostep that changed state and after
// every failed one.
type Observer interface {
	OnTransition(machineID string, report TransitionReport)
	OnError(machineID string, event primitives.Event, err error)
}

// Machine is one running instance of a Definition.
type Machine struct {
	def     *Definition
	graph   *Graph
	id      string
	ctx     *primitives.Context
	history *HistoryManager
	active  []bool
	started bool

	busy     atomic.Bool
	phase    atomic.Int32
	done     chan struct{}
	stopOnce sync.Once

	maxMicrosteps int
	logger        *slog.Logger
	r             *resolver

	// Pluggable components (nil = defaults/none)
	actionRunner ActionRunner
	guardEval    GuardEvaluator
	persister    Persister
	publisher    EventPublisher
	visualizer   Visualizer
	registry     Registry
	observers    []Observer
}

// NewMachine creates a Machine for def. The machine is inert until Start.
func NewMachine(def *Definition, opts ...Option) *Machine {
	m := &Machine{
		def:           def,
		graph:         def.graph,
		id:            uuid.NewString(),
		ctx:           primitives.NewContext(),
		history:       NewHistoryManager(),
		active:        make([]bool, def.graph.Len()),
		done:          make(chan struct{}),
		maxMicrosteps: DefaultMaxMicrosteps,
		logger:        logging.NewNop(),
		actionRunner:  funcRunner{},
		guardEval:     funcGuards{},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.r = &resolver{
		graph:    m.graph,
		guards:   m.guardEval,
		actions:  m.actionRunner,
		history:  m.history,
		logger:   m.logger.With("machine", m.id, "definition", def.ID()),
		phase:    &m.phase,
		maxMicro: m.maxMicrosteps,
	}
	return m
}

// ID returns the instance ID.
func (m *Machine) ID() string { return m.id }

// Definition returns the definition the machine runs.
func (m *Machine) Definition() *Definition { return m.def }

// Phase returns the resolver phase of the last (or running) macrostep.
func (m *Machine) Phase() Phase { return Phase(m.phase.Load()) }

// Started reports whether the initial configuration has been entered.
func (m *Machine) Started() bool { return m.started }

func (m *Machine) acquire() error {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrReentrantSend
	}
	select {
	case <-m.done:
		m.busy.Store(false)
		return ErrStopped
	default:
	}
	return nil
}

// Start enters the initial configuration and runs eventless transitions.
// Calling Start on a started machine returns the current configuration.
func (m *Machine) Start(ctx context.Context) (TransitionReport, error) {
	if err := m.acquire(); err != nil {
		return TransitionReport{}, err
	}
	defer m.busy.Store(false)

	report := TransitionReport{Event: primitives.NewEvent(InitEvent, nil)}
	if m.started {
		report.Configuration = m.r.leaves(m.active)
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	m.r.setPhase(PhaseResolving)
	initial := &transition{source: m.graph.Root(), targets: []NodeIndex{m.graph.initial}}
	err := m.r.microstep(m.active, m.ctx, report.Event, []*transition{initial}, &report)
	if err == nil {
		m.started = true
		err = m.r.macrostep(m.active, m.ctx, report.Event, nil, nil, &report)
	}
	return m.finish(ctx, &report, err)
}

// Send processes one event to completion. An event no transition accepts is
// not an error: the report is empty and the configuration unchanged.
func (m *Machine) Send(ctx context.Context, event primitives.Event) (TransitionReport, error) {
	if err := m.acquire(); err != nil {
		return TransitionReport{Event: event}, err
	}
	defer m.busy.Store(false)

	report := TransitionReport{Event: event}
	if !m.started {
		return report, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	m.r.setPhase(PhaseResolving)
	ts, err := m.r.selectTransitions(m.active, m.ctx, event, false)
	if err == nil && len(ts) > 0 {
		err = m.r.macrostep(m.active, m.ctx, event, event, ts, &report)
	}
	return m.finish(ctx, &report, err)
}

func (m *Machine) finish(ctx context.Context, report *TransitionReport, err error) (TransitionReport, error) {
	report.Configuration = m.r.leaves(m.active)
	if err != nil {
		m.r.setPhase(PhaseErrored)
		var me *MachineError
		if errors.As(err, &me) {
			me.Report = *report
		}
		for _, o := range m.observers {
			o.OnError(m.id, report.Event, err)
		}
	} else {
		m.r.setPhase(PhaseConverged)
	}
	if report.Microsteps > 0 {
		m.notify(ctx, *report)
	}
	return *report, err
}

// notify hands a committed macrostep to the collaborators. Their failures
// are logged and never fail the macrostep.
func (m *Machine) notify(ctx context.Context, report TransitionReport) {
	m.r.logger.Debug("transition",
		"event", report.Event.Type,
		"exited", report.Exited,
		"entered", report.Entered,
		"configuration", report.Configuration,
		"microsteps", report.Microsteps)

	if m.persister != nil || m.registry != nil {
		snap := m.snapshot()
		if m.persister != nil {
			if err := m.persister.Save(ctx, snap); err != nil {
				m.r.logger.Warn("persist snapshot failed", "error", err)
			}
		}
		if m.registry != nil {
			if err := m.registry.Register(ctx, snap); err != nil {
				m.r.logger.Warn("register snapshot failed", "error", err)
			}
		}
	}
	if m.publisher != nil {
		md := MachineMetadata{
			MachineID:     m.id,
			Definition:    m.def.ID(),
			Transition:    fmt.Sprintf("%s -> %s", strings.Join(report.Exited, ","), strings.Join(report.Entered, ",")),
			Configuration: report.Configuration,
			Timestamp:     time.Now().UTC(),
		}
		if err := m.publisher.Publish(ctx, report.Event, md); err != nil {
			m.r.logger.Warn("publish failed", "error", err)
		}
	}
	for _, o := range m.observers {
		o.OnTransition(m.id, report)
	}
}

// Can reports whether event type eventType would select at least one
// transition now. Guards run; nothing else happens.
func (m *Machine) Can(eventType string) bool {
	if !m.started {
		return false
	}
	ts, err := m.r.selectTransitions(m.active, m.ctx, primitives.NewEvent(eventType, nil), false)
	return err == nil && len(ts) > 0
}

// Matches tests the active states against a dotted path ("traffic.red"), a
// bare state ID, or a '*' pattern over dotted paths ("traffic.*").
func (m *Machine) Matches(pattern string) bool {
	prefixed := strings.TrimPrefix(pattern, m.def.ID()+".")
	for i, on := range m.active {
		if !on || i == int(m.graph.Root()) {
			continue
		}
		n := &m.graph.nodes[i]
		switch {
		case primitives.IsWildcardPattern(pattern):
			if primitives.MatchEvent(pattern, n.Path) || primitives.MatchEvent(prefixed, n.Path) {
				return true
			}
		case strings.Contains(pattern, "."):
			if n.Path == pattern || n.Path == prefixed {
				return true
			}
		case n.ID == pattern:
			return true
		}
	}
	return false
}

// Configuration returns the active atomic states in document order.
func (m *Machine) Configuration() []string {
	return m.r.leaves(m.active)
}

// ActiveStates returns every active state (atomic states and their
// ancestors) in document order.
func (m *Machine) ActiveStates() []string {
	var out []string
	for i, on := range m.active {
		if on && i != int(m.graph.Root()) {
			out = append(out, m.graph.nodes[i].ID)
		}
	}
	return out
}

// Context returns the machine's extended state.
func (m *Machine) Context() *primitives.Context {
	return m.ctx
}

// History returns the current history records.
func (m *Machine) History() map[string][]string {
	return m.history.Snapshot()
}

// Snapshot captures configuration, context and history.
func (m *Machine) Snapshot() MachineSnapshot {
	return m.snapshot()
}

func (m *Machine) snapshot() MachineSnapshot {
	return MachineSnapshot{
		MachineID:     m.id,
		Definition:    m.def.ID(),
		Version:       m.def.Version(),
		Configuration: m.r.leaves(m.active),
		Context:       m.ctx.Snapshot(),
		History:       m.history.Snapshot(),
		Timestamp:     time.Now().UTC(),
	}
}

// Restore replaces the runtime state with s. The snapshot must come from the
// same definition ID and version and describe a legal configuration. A
// restored machine counts as started; no entry actions run.
func (m *Machine) Restore(s MachineSnapshot) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.busy.Store(false)

	if s.Definition != m.def.ID() || s.Version != m.def.Version() {
		return fmt.Errorf("%w: snapshot is %s@%s, machine runs %s@%s",
			ErrSnapshotMismatch, s.Definition, s.Version, m.def.ID(), m.def.Version())
	}
	active, err := m.configurationFrom(s.Configuration)
	if err != nil {
		return err
	}
	for hid, states := range s.History {
		h, ok := m.graph.byID[hid]
		if !ok || !m.graph.nodes[h].Type.IsHistory() {
			return fmt.Errorf("%w: %q is not a history state", ErrSnapshotMismatch, hid)
		}
		for _, id := range states {
			if _, ok := m.graph.byID[id]; !ok {
				return fmt.Errorf("%w: history %q records unknown state %q", ErrSnapshotMismatch, hid, id)
			}
		}
	}

	copy(m.active, active)
	m.ctx.Restore(s.Context)
	m.history.Load(s.History)
	if s.MachineID != "" {
		m.id = s.MachineID
	}
	m.started = true
	m.r.setPhase(PhaseIdle)
	return nil
}

// configurationFrom rebuilds the active set from atomic leaves and checks
// that it is a legal configuration.
func (m *Machine) configurationFrom(leaves []string) ([]bool, error) {
	g := m.graph
	if len(leaves) == 0 {
		return nil, fmt.Errorf("%w: empty configuration", ErrSnapshotMismatch)
	}
	active := make([]bool, g.Len())
	for _, id := range leaves {
		i, ok := g.byID[id]
		if !ok || g.nodes[i].Type != primitives.Atomic {
			return nil, fmt.Errorf("%w: %q is not an atomic state", ErrSnapshotMismatch, id)
		}
		for x := i; x != NoNode; x = g.nodes[x].Parent {
			active[x] = true
		}
	}
	for i, on := range active {
		if !on {
			continue
		}
		n := &g.nodes[i]
		switch {
		case NodeIndex(i) == g.Root() || n.Type == primitives.Compound:
			count := 0
			for _, c := range n.Children {
				if active[c] {
					count++
				}
			}
			if count != 1 {
				return nil, fmt.Errorf("%w: %d active children in %q", ErrSnapshotMismatch, count, n.ID)
			}
		case n.Type == primitives.Parallel:
			for _, c := range n.Children {
				if !g.nodes[c].Type.IsHistory() && !active[c] {
					return nil, fmt.Errorf("%w: region %q of %q inactive", ErrSnapshotMismatch, g.nodes[c].ID, n.ID)
				}
			}
		}
	}
	return active, nil
}

// Run feeds events from src into Send on the caller's goroutine until src is
// closed, ctx is done or the machine is stopped. Guard, action and loop
// failures are logged and do not stop the loop.
func (m *Machine) Run(ctx context.Context, src EventSource) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := m.Send(ctx, event); err != nil {
				var me *MachineError
				var le *InfiniteLoopError
				if errors.As(err, &me) || errors.As(err, &le) {
					m.r.logger.Warn("event failed", "event", event.Type, "error", err)
					continue
				}
				if errors.Is(err, ErrStopped) {
					return nil
				}
				return err
			}
		}
	}
}

// Stop ends Run loops, rejects further events and closes the publisher.
// Safe to call multiple times.
func (m *Machine) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		close(m.done)
		if m.publisher != nil {
			err = m.publisher.Close()
		}
	})
	return err
}

// Visualize returns the Graphviz DOT rendering with active states highlighted.
func (m *Machine) Visualize() string {
	if m.visualizer == nil {
		return "ERROR: No visualizer configured. Use WithVisualizer(production.NewVisualizer())"
	}
	return m.visualizer.ExportDOT(m.def.Config(), m.ActiveStates())
}
