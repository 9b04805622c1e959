package primitives

import "fmt"

// MachineBuilder builds hierarchical MachineConfig fluently.
//
//	mb := NewMachineBuilder("light", "traffic")
//	traffic := mb.Compound("traffic").WithInitial("red")
//	traffic.Atomic("red").Transition("TIMER", "green")
//	traffic.Atomic("green").Transition("TIMER", "red")
//	cfg, err := mb.Build()
type MachineBuilder struct {
	config *MachineConfig
}

// NewMachineBuilder creates a new MachineBuilder.
func NewMachineBuilder(id, initial string) *MachineBuilder {
	return &MachineBuilder{
		config: &MachineConfig{ID: id, Initial: initial, States: make(map[string]*StateConfig)},
	}
}

func (b *MachineBuilder) top(id string, typ StateType) *StateBuilder {
	s := NewStateConfig(id, typ)
	b.config.States[id] = s
	return &StateBuilder{state: s, mb: b}
}

// Compound starts a top-level compound state.
func (b *MachineBuilder) Compound(id string) *StateBuilder { return b.top(id, Compound) }

// Parallel starts a top-level parallel state.
func (b *MachineBuilder) Parallel(id string) *StateBuilder { return b.top(id, Parallel) }

// Atomic starts a top-level atomic state.
func (b *MachineBuilder) Atomic(id string) *StateBuilder { return b.top(id, Atomic) }

// State sugar for Atomic.
func (b *MachineBuilder) State(id string) *StateBuilder { return b.Atomic(id) }

// Describe sets the machine description.
func (b *MachineBuilder) Describe(text string) *MachineBuilder {
	b.config.Description = text
	return b
}

// Version pins the definition version instead of the computed one.
func (b *MachineBuilder) Version(v string) *MachineBuilder {
	b.config.Version = v
	return b
}

// StateBuilder for fluent transitions/nesting.
type StateBuilder struct {
	state  *StateConfig
	parent *StateBuilder
	mb     *MachineBuilder
}

// Config exposes the state being built.
func (sb *StateBuilder) Config() *StateConfig { return sb.state }

// Transition adds transition.
func (sb *StateBuilder) Transition(event, target string, opts ...TransitionConfig) *StateBuilder {
	sb.state.Transition(event, target, opts...)
	return sb
}

// On adds a fully specified transition.
func (sb *StateBuilder) On(event string, trans TransitionConfig) *StateBuilder {
	sb.state.AddTransition(event, trans)
	return sb
}

// Always adds an eventless transition.
func (sb *StateBuilder) Always(trans TransitionConfig) *StateBuilder {
	sb.state.AddAlways(trans)
	return sb
}

// Entry appends entry actions.
func (sb *StateBuilder) Entry(actions ...ActionRef) *StateBuilder {
	sb.state.Entry = append(sb.state.Entry, actions...)
	return sb
}

// Exit appends exit actions.
func (sb *StateBuilder) Exit(actions ...ActionRef) *StateBuilder {
	sb.state.Exit = append(sb.state.Exit, actions...)
	return sb
}

// Describe sets the state description.
func (sb *StateBuilder) Describe(text string) *StateBuilder {
	sb.state.Description = text
	return sb
}

func (sb *StateBuilder) child(id string, typ StateType) *StateBuilder {
	if sb.state.Type == Atomic {
		sb.state.Type = Compound
	}
	child := sb.state.State(id, typ)
	return &StateBuilder{state: child, parent: sb, mb: sb.mb}
}

// Compound nests compound child.
func (sb *StateBuilder) Compound(id string) *StateBuilder { return sb.child(id, Compound) }

// Parallel nests parallel child.
func (sb *StateBuilder) Parallel(id string) *StateBuilder { return sb.child(id, Parallel) }

// Atomic nests atomic child.
func (sb *StateBuilder) Atomic(id string) *StateBuilder { return sb.child(id, Atomic) }

// History nests history child.
func (sb *StateBuilder) History(id string, shallow bool) *StateBuilder {
	typ := ShallowHistory
	if !shallow {
		typ = DeepHistory
	}
	return sb.child(id, typ)
}

// Up returns the builder of the parent state (itself for top-level states).
func (sb *StateBuilder) Up() *StateBuilder {
	if sb.parent != nil {
		return sb.parent
	}
	return sb
}

// WithInitial sets initial for current (compound).
func (sb *StateBuilder) WithInitial(initial string) *StateBuilder {
	sb.state.WithInitial(initial)
	return sb
}

// Build finalizes and validates the config.
func (b *MachineBuilder) Build() (MachineConfig, error) {
	if err := b.config.Validate(); err != nil {
		return MachineConfig{}, fmt.Errorf("build %s: %w", b.config.ID, err)
	}
	return *b.config, nil
}

// MustBuild is Build for static definitions; it panics on error.
func (b *MachineBuilder) MustBuild() MachineConfig {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}
