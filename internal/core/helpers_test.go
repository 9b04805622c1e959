package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comalice/chartkit/internal/primitives"
)

func leaf(id string) *primitives.StateConfig {
	return primitives.NewStateConfig(id, primitives.Atomic)
}

func comp(id string, children ...*primitives.StateConfig) *primitives.StateConfig {
	return primitives.NewStateConfig(id, primitives.Compound).WithChildren(children...)
}

func par(id string, children ...*primitives.StateConfig) *primitives.StateConfig {
	return primitives.NewStateConfig(id, primitives.Parallel).WithChildren(children...)
}

func hist(id string, deep bool) *primitives.StateConfig {
	if deep {
		return primitives.NewStateConfig(id, primitives.DeepHistory)
	}
	return primitives.NewStateConfig(id, primitives.ShallowHistory)
}

func chart(id, initial string, states ...*primitives.StateConfig) primitives.MachineConfig {
	cfg := primitives.MachineConfig{ID: id, Initial: initial, States: map[string]*primitives.StateConfig{}}
	for _, s := range states {
		cfg.States[s.ID] = s
	}
	return cfg
}

func evt(typ string) primitives.Event { return primitives.NewEvent(typ, nil) }

func startMachine(t *testing.T, cfg primitives.MachineConfig, opts ...Option) *Machine {
	t.Helper()
	def, err := NewDefinition(cfg)
	require.NoError(t, err)
	m := NewMachine(def, opts...)
	_, err = m.Start(context.Background())
	require.NoError(t, err)
	return m
}

func send(t *testing.T, m *Machine, typ string) TransitionReport {
	t.Helper()
	report, err := m.Send(context.Background(), evt(typ))
	require.NoError(t, err)
	return report
}

// recorder is an action that appends its name to ctx key "trace".
func recorder(name string) primitives.NamedAction {
	return primitives.Named(name, func(ctx *primitives.Context, _ primitives.Event) error {
		cur, _ := ctx.Get("trace")
		list, _ := cur.([]string)
		ctx.Set("trace", append(append([]string(nil), list...), name))
		return nil
	})
}

func trace(m *Machine) []string {
	v, _ := m.Context().Get("trace")
	list, _ := v.([]string)
	return list
}
