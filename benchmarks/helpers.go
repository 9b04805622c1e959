// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

// GenFlatConfig creates a flat machine with n atomic states cycling via "tick" events.
func GenFlatConfig(n int) primitives.MachineConfig {
	if n < 1 {
		n = 1
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("flat_%d", n), "s0")
	for i := 0; i < n; i++ {
		mb.Atomic(fmt.Sprintf("s%d", i)).Transition("tick", fmt.Sprintf("s%d", (i+1)%n))
	}
	return mb.MustBuild()
}

// GenDeepConfig nests depth compound states; the innermost one flips
// between two leaves on "tick" and the outermost restarts on "reset".
func GenDeepConfig(depth int) primitives.MachineConfig {
	if depth < 1 {
		depth = 1
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("deep_%d", depth), "c0")
	outer := mb.Compound("c0").Transition("reset", "c0")
	sb := outer
	for i := 1; i < depth; i++ {
		id := fmt.Sprintf("c%d", i)
		sb.WithInitial(id)
		sb = sb.Compound(id)
	}
	sb.WithInitial("leaf1")
	sb.Atomic("leaf1").Transition("tick", "leaf2")
	sb.Atomic("leaf2").Transition("tick", "leaf1")
	return mb.MustBuild()
}

// GenWideTransitions creates one state with n guarded "tick" transitions;
// only the last one passes, so selection evaluates every guard.
func GenWideTransitions(n int) primitives.MachineConfig {
	if n < 1 {
		n = 1
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("wide_%d", n), "main")
	main := mb.Atomic("main")
	for i := 0; i < n; i++ {
		target := fmt.Sprintf("target%d", i)
		last := i == n-1
		main.On("tick", primitives.TransitionConfig{
			Target: target,
			Guard:  func(*primitives.Context, primitives.Event) bool { return last },
		})
		mb.Atomic(target).Transition("tick", "main")
	}
	return mb.MustBuild()
}

// GenParallelConfig creates a parallel state with n regions that all flip
// on "tick".
func GenParallelConfig(regions int) primitives.MachineConfig {
	if regions < 1 {
		regions = 1
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("parallel_%d", regions), "p")
	p := mb.Parallel("p")
	for i := 0; i < regions; i++ {
		r := p.Compound(fmt.Sprintf("r%d", i)).WithInitial(fmt.Sprintf("r%d_a", i))
		r.Atomic(fmt.Sprintf("r%d_a", i)).Transition("tick", fmt.Sprintf("r%d_b", i))
		r.Atomic(fmt.Sprintf("r%d_b", i)).Transition("tick", fmt.Sprintf("r%d_a", i))
	}
	return mb.MustBuild()
}

// GenHistoryConfig: work{a <-> b, deep history} <-> pause, so every "break"
// and "resume" pair records and restores history.
func GenHistoryConfig() primitives.MachineConfig {
	mb := primitives.NewMachineBuilder("history", "work")
	work := mb.Compound("work").WithInitial("a")
	work.Atomic("a").Transition("tick", "b")
	work.Atomic("b").Transition("tick", "a")
	work.History("h", false)
	work.Transition("break", "pause")
	mb.Atomic("pause").Transition("resume", "work.h")
	return mb.MustBuild()
}

// StartMachine validates config and starts one instance of it.
func StartMachine(tb testing.TB, config primitives.MachineConfig, opts ...core.Option) *core.Machine {
	tb.Helper()
	def, err := core.NewDefinition(config)
	if err != nil {
		tb.Fatal(err)
	}
	m := core.NewMachine(def, opts...)
	if _, err := m.Start(context.Background()); err != nil {
		tb.Fatal(err)
	}
	return m
}

// GenSnapshotYAML generates YAML bytes for a snapshot of a started machine
// after one "tick".
func GenSnapshotYAML(tb testing.TB, config primitives.MachineConfig) []byte {
	tb.Helper()
	m := StartMachine(tb, config)
	defer m.Stop()
	m.Context().Set("counter", 1)
	if _, err := m.Send(context.Background(), primitives.NewEvent("tick", nil)); err != nil {
		tb.Fatal(err)
	}
	data, err := yaml.Marshal(m.Snapshot())
	if err != nil {
		tb.Fatal(err)
	}
	return data
}
