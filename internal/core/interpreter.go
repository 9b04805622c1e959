package core

import (
	"log/slog"
	"sync/atomic"

	"github.com/comalice/chartkit/internal/primitives"
)

// InitEvent is the type of the event passed to entry actions while a machine
// enters its initial configuration.
const InitEvent = "chartkit.init"

// Phase is the state of the transition resolver during a macrostep.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseApplying
	PhaseConverged
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseApplying:
		return "applying"
	case PhaseConverged:
		return "converged"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StepPlan is one microstep: the selected transitions and the states they
// exit and enter.
type StepPlan struct {
	transitions []*transition
	exits       []NodeIndex // innermost first
	entries     []NodeIndex // outermost first
	history     map[NodeIndex][]NodeIndex
}

// resolver selects and applies transitions over a configuration. It never
// retains the configuration; the Machine passes it in and gets it updated.
type resolver struct {
	graph    *Graph
	guards   GuardEvaluator
	actions  ActionRunner
	history  *HistoryManager
	logger   *slog.Logger
	phase    *atomic.Int32
	maxMicro int
}

func (r *resolver) setPhase(p Phase) {
	r.phase.Store(int32(p))
}

// leaves returns the active atomic states in document order.
func (r *resolver) leaves(active []bool) []string {
	var out []string
	for i, on := range active {
		if on && r.graph.nodes[i].Type == primitives.Atomic {
			out = append(out, r.graph.nodes[i].ID)
		}
	}
	return out
}

// selectTransitions picks the enabled transitions for evt. With eventless set
// only Always transitions are considered. Each guard runs at most once per
// call, even when several active leaves share the ancestor that owns it.
func (r *resolver) selectTransitions(active []bool, ctx *primitives.Context, evt primitives.Event, eventless bool) ([]*transition, error) {
	g := r.graph
	var selected []*transition
	seen := make(map[*transition]bool)
	guards := make(map[*transition]bool)
	for i, on := range active {
		if !on || g.nodes[i].Type != primitives.Atomic {
			continue
		}
		for n := NodeIndex(i); n != NoNode; n = g.nodes[n].Parent {
			t, err := r.firstEnabled(n, ctx, evt, eventless, guards)
			if err != nil {
				return nil, err
			}
			if t == nil {
				continue
			}
			if !seen[t] {
				seen[t] = true
				selected = append(selected, t)
			}
			break
		}
	}
	return r.removeConflicts(active, selected), nil
}

func (r *resolver) firstEnabled(n NodeIndex, ctx *primitives.Context, evt primitives.Event, eventless bool, guards map[*transition]bool) (*transition, error) {
	node := r.graph.node(n)
	if eventless {
		return r.firstPassing(node, node.always, ctx, evt, guards)
	}
	if t, err := r.firstPassing(node, node.exact[evt.Type], ctx, evt, guards); t != nil || err != nil {
		return t, err
	}
	if evt.Type == primitives.AlwaysEvent {
		return nil, nil
	}
	for _, grp := range node.wildcard {
		if !primitives.MatchEvent(grp.pattern, evt.Type) {
			continue
		}
		if t, err := r.firstPassing(node, grp.transitions, ctx, evt, guards); t != nil || err != nil {
			return t, err
		}
	}
	return nil, nil
}

// firstPassing returns the first candidate whose guard passes. Results are
// memoized in guards; a failing guard aborts selection, so errors are not.
func (r *resolver) firstPassing(node *Node, candidates []*transition, ctx *primitives.Context, evt primitives.Event, guards map[*transition]bool) (*transition, error) {
	for _, t := range candidates {
		ok, done := guards[t]
		if done {
			if ok {
				return t, nil
			}
			continue
		}
		ok, err := r.evalGuard(t, ctx, evt)
		if err != nil {
			return nil, &MachineError{
				Kind:    KindGuard,
				Event:   evt.Type,
				StateID: node.ID,
				Action:  RefName(t.guard),
				Err:     err,
			}
		}
		guards[t] = ok
		if ok {
			return t, nil
		}
	}
	return nil, nil
}

func (r *resolver) evalGuard(t *transition, ctx *primitives.Context, evt primitives.Event) (ok bool, err error) {
	if t.guard == nil {
		return true, nil
	}
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, &PanicError{Value: p}
		}
	}()
	return r.guards.Eval(ctx, t.guard, evt)
}

func (r *resolver) runAction(ctx *primitives.Context, action primitives.ActionRef, evt primitives.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p}
		}
	}()
	return r.actions.Run(ctx, action, evt)
}

// removeConflicts drops every transition whose exit set intersects the exit
// set of an earlier selected transition.
func (r *resolver) removeConflicts(active []bool, selected []*transition) []*transition {
	if len(selected) < 2 {
		return selected
	}
	var kept []*transition
	var keptExits []map[NodeIndex]bool
	for _, t := range selected {
		exits := make(map[NodeIndex]bool)
		for _, s := range r.exitSet(active, []*transition{t}) {
			exits[s] = true
		}
		conflict := false
		for _, other := range keptExits {
			for s := range exits {
				if other[s] {
					conflict = true
					break
				}
			}
			if conflict {
				break
			}
		}
		if !conflict {
			kept = append(kept, t)
			keptExits = append(keptExits, exits)
		}
	}
	return kept
}

// domain is the state whose descendants a transition may exit and enter.
// NoNode for targetless transitions.
func (r *resolver) domain(t *transition) NodeIndex {
	g := r.graph
	if len(t.targets) == 0 {
		return NoNode
	}
	if t.internal && g.nodes[t.source].Type == primitives.Compound {
		inside := true
		for _, target := range t.targets {
			if !g.isDescendant(target, t.source) {
				inside = false
				break
			}
		}
		if inside {
			return t.source
		}
	}
	states := make([]NodeIndex, 0, len(t.targets)+1)
	states = append(states, t.source)
	states = append(states, t.targets...)
	return g.lcca(states)
}

// exitSet returns the active states left by ts, innermost first.
func (r *resolver) exitSet(active []bool, ts []*transition) []NodeIndex {
	g := r.graph
	exit := make([]bool, len(active))
	for _, t := range ts {
		d := r.domain(t)
		if d == NoNode {
			continue
		}
		for i := d + 1; i < g.nodes[d].end; i++ {
			if active[i] {
				exit[i] = true
			}
		}
	}
	var out []NodeIndex
	for i := len(exit) - 1; i >= 0; i-- {
		if exit[i] {
			out = append(out, NodeIndex(i))
		}
	}
	return out
}

// recordHistory computes the records for every history child of the exited
// states, from the configuration before the microstep.
func (r *resolver) recordHistory(active []bool, exits []NodeIndex) map[NodeIndex][]NodeIndex {
	g := r.graph
	var records map[NodeIndex][]NodeIndex
	for _, s := range exits {
		node := g.node(s)
		for _, h := range node.history {
			var states []NodeIndex
			if g.nodes[h].Type == primitives.DeepHistory {
				for i := s + 1; i < node.end; i++ {
					if active[i] && g.nodes[i].Type == primitives.Atomic {
						states = append(states, i)
					}
				}
			} else {
				for _, c := range node.Children {
					if active[c] {
						states = append(states, c)
					}
				}
			}
			if records == nil {
				records = make(map[NodeIndex][]NodeIndex)
			}
			records[h] = states
		}
	}
	return records
}

// entryBuilder accumulates the states entered by a microstep.
type entryBuilder struct {
	r       *resolver
	toEnter []bool
	pending map[NodeIndex][]NodeIndex
}

func (e *entryBuilder) historyStates(h NodeIndex) []NodeIndex {
	g := e.r.graph
	if states, ok := e.pending[h]; ok && len(states) > 0 {
		return states
	}
	if ids, ok := e.r.history.Restore(g.nodes[h].ID); ok {
		states := make([]NodeIndex, 0, len(ids))
		for _, id := range ids {
			if i, found := g.byID[id]; found {
				states = append(states, i)
			}
		}
		if len(states) > 0 {
			return states
		}
	}
	parent := g.node(g.nodes[h].Parent)
	if parent.Type == primitives.Compound {
		return []NodeIndex{parent.initial}
	}
	return e.regions(parent)
}

func (e *entryBuilder) regions(n *Node) []NodeIndex {
	var out []NodeIndex
	for _, c := range n.Children {
		if !e.r.graph.nodes[c].Type.IsHistory() {
			out = append(out, c)
		}
	}
	return out
}

func (e *entryBuilder) effectiveTargets(target NodeIndex) []NodeIndex {
	if e.r.graph.nodes[target].Type.IsHistory() {
		return e.historyStates(target)
	}
	return []NodeIndex{target}
}

func (e *entryBuilder) covered(region NodeIndex) bool {
	if e.toEnter[region] {
		return true
	}
	for i := region + 1; i < e.r.graph.nodes[region].end; i++ {
		if e.toEnter[i] {
			return true
		}
	}
	return false
}

func (e *entryBuilder) addDescendants(i NodeIndex) {
	g := e.r.graph
	n := g.node(i)
	if n.Type.IsHistory() {
		states := e.historyStates(i)
		for _, s := range states {
			e.addDescendants(s)
		}
		for _, s := range states {
			e.addAncestors(s, n.Parent)
		}
		return
	}
	e.toEnter[i] = true
	switch n.Type {
	case primitives.Compound:
		e.addDescendants(n.initial)
	case primitives.Parallel:
		for _, c := range e.regions(n) {
			if !e.covered(c) {
				e.addDescendants(c)
			}
		}
	}
}

func (e *entryBuilder) addAncestors(s, stop NodeIndex) {
	g := e.r.graph
	for _, anc := range g.properAncestors(s, stop) {
		e.toEnter[anc] = true
		n := g.node(anc)
		if n.Type != primitives.Parallel {
			continue
		}
		for _, c := range e.regions(n) {
			if !e.covered(c) {
				e.addDescendants(c)
			}
		}
	}
}

// plan computes the exit set, history records and entry set of ts.
func (r *resolver) plan(active []bool, ts []*transition) *StepPlan {
	p := &StepPlan{transitions: ts}
	p.exits = r.exitSet(active, ts)
	p.history = r.recordHistory(active, p.exits)

	e := &entryBuilder{r: r, toEnter: make([]bool, len(active)), pending: p.history}
	for _, t := range ts {
		if len(t.targets) == 0 {
			continue
		}
		for _, target := range t.targets {
			e.addDescendants(target)
		}
		d := r.domain(t)
		for _, target := range t.targets {
			for _, s := range e.effectiveTargets(target) {
				e.addAncestors(s, d)
			}
		}
	}
	e.toEnter[r.graph.Root()] = false
	for i, on := range e.toEnter {
		if on {
			p.entries = append(p.entries, NodeIndex(i))
		}
	}
	return p
}

// microstep applies one plan. On an action failure nothing of the microstep
// is committed to active or to the history manager; context mutations made
// by the actions that already ran are kept.
func (r *resolver) microstep(active []bool, ctx *primitives.Context, evt primitives.Event, ts []*transition, report *TransitionReport) error {
	g := r.graph
	p := r.plan(active, ts)
	r.setPhase(PhaseApplying)

	next := make([]bool, len(active))
	copy(next, active)
	var exited, entered, actions []string

	fail := func(stateID string, action primitives.ActionRef, err error) error {
		r.logger.Warn("microstep partially applied",
			"event", evt.Type,
			"state", stateID,
			"action", RefName(action),
			"partially_applied", true,
			"error", err)
		return &MachineError{
			Kind:    KindAction,
			Event:   evt.Type,
			StateID: stateID,
			Action:  RefName(action),
			Err:     err,
		}
	}

	for _, s := range p.exits {
		node := g.node(s)
		for _, a := range node.Config.Exit {
			if err := r.runAction(ctx, a, evt); err != nil {
				return fail(node.ID, a, err)
			}
			actions = append(actions, RefName(a))
		}
		next[s] = false
		exited = append(exited, node.ID)
	}
	for _, t := range ts {
		for _, a := range t.actions {
			if err := r.runAction(ctx, a, evt); err != nil {
				return fail(g.nodes[t.source].ID, a, err)
			}
			actions = append(actions, RefName(a))
		}
	}
	for _, s := range p.entries {
		node := g.node(s)
		next[s] = true
		entered = append(entered, node.ID)
		for _, a := range node.Config.Entry {
			if err := r.runAction(ctx, a, evt); err != nil {
				return fail(node.ID, a, err)
			}
			actions = append(actions, RefName(a))
		}
	}

	copy(active, next)
	for h, states := range p.history {
		ids := make([]string, len(states))
		for k, s := range states {
			ids[k] = g.nodes[s].ID
		}
		r.history.Record(g.nodes[h].ID, ids)
	}
	report.Exited = append(report.Exited, exited...)
	report.Entered = append(report.Entered, entered...)
	report.Actions = append(report.Actions, actions...)
	report.Microsteps++
	r.logger.Debug("microstep",
		"event", evt.Type,
		"exited", exited,
		"entered", entered)
	return nil
}

// macrostep applies ts and then runs eventless transitions until none is
// enabled. trigger becomes the Data of the synthetic always event.
func (r *resolver) macrostep(active []bool, ctx *primitives.Context, evt primitives.Event, trigger any, ts []*transition, report *TransitionReport) error {
	if len(ts) > 0 {
		if err := r.microstep(active, ctx, evt, ts, report); err != nil {
			return err
		}
	}
	always := primitives.NewEvent(primitives.AlwaysEvent, trigger)
	for n := 0; ; n++ {
		r.setPhase(PhaseResolving)
		next, err := r.selectTransitions(active, ctx, always, true)
		if err != nil {
			return err
		}
		if len(next) == 0 {
			return nil
		}
		if n >= r.maxMicro {
			err := &InfiniteLoopError{Limit: r.maxMicro, Configuration: r.leaves(active)}
			r.logger.Warn("eventless transitions did not converge",
				"limit", r.maxMicro,
				"configuration", err.Configuration)
			return err
		}
		if err := r.microstep(active, ctx, always, next, report); err != nil {
			return err
		}
	}
}
