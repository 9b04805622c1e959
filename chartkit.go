// Package chartkit is a hierarchical, parallel statechart engine.
//
// A chart is described as a MachineConfig (built with NewBuilder or loaded
// from YAML/JSON), validated once into an immutable Definition, and executed
// by any number of independent Machine instances:
//
//	cfg := chartkit.NewBuilder("light", "off")
//	cfg.Atomic("off").Transition("FLIP", "on")
//	cfg.Atomic("on").Transition("FLIP", "off")
//
//	m, err := chartkit.New(cfg.MustBuild(), nil)
//	_, err = m.Start(ctx)
//	report, err := m.Send(ctx, chartkit.NewEvent("FLIP", nil))
//
// Guards and actions are function values or string references. Strings are
// resolved by the Catalog passed to New, then as built-in actions
// ("set:key=value", "inc:key", "log:message", ...) or guard expressions
// ("count >= 3").
package chartkit

import (
	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/extensibility"
	"github.com/comalice/chartkit/internal/primitives"
)

type (
	Event            = primitives.Event
	Context          = primitives.Context
	MachineConfig    = primitives.MachineConfig
	StateConfig      = primitives.StateConfig
	StateType        = primitives.StateType
	TransitionConfig = primitives.TransitionConfig
	ActionRef        = primitives.ActionRef
	GuardRef         = primitives.GuardRef
	ActionFunc       = primitives.ActionFunc
	GuardFunc        = primitives.GuardFunc
	NamedAction      = primitives.NamedAction
	MachineBuilder   = primitives.MachineBuilder

	Definition       = core.Definition
	Machine          = core.Machine
	Option           = core.Option
	TransitionReport = core.TransitionReport
	MachineSnapshot  = core.MachineSnapshot

	DefinitionError   = core.DefinitionError
	MachineError      = core.MachineError
	InfiniteLoopError = core.InfiniteLoopError

	Catalog = extensibility.Catalog
)

const (
	Atomic         = primitives.Atomic
	Compound       = primitives.Compound
	Parallel       = primitives.Parallel
	ShallowHistory = primitives.ShallowHistory
	DeepHistory    = primitives.DeepHistory
)

var (
	ErrInvalidDefinition = core.ErrInvalidDefinition
	ErrGuardFailed       = core.ErrGuardFailed
	ErrActionFailed      = core.ErrActionFailed
	ErrInfiniteLoop      = core.ErrInfiniteLoop
	ErrReentrantSend     = core.ErrReentrantSend
	ErrNotStarted        = core.ErrNotStarted
	ErrStopped           = core.ErrStopped
	ErrSnapshotMismatch  = core.ErrSnapshotMismatch
)

// Re-exported options.
var (
	WithActionRunner   = core.WithActionRunner
	WithGuardEvaluator = core.WithGuardEvaluator
	WithPersister      = core.WithPersister
	WithPublisher      = core.WithPublisher
	WithVisualizer     = core.WithVisualizer
	WithRegistry       = core.WithRegistry
	WithObserver       = core.WithObserver
	WithLogger         = core.WithLogger
	WithMaxMicrosteps  = core.WithMaxMicrosteps
	WithContext        = core.WithContext
	WithID             = core.WithID
)

// NewEvent creates an event.
func NewEvent(eventType string, data any) Event { return primitives.NewEvent(eventType, data) }

// Named attaches a report name to an action function.
func Named(name string, fn ActionFunc) NamedAction { return primitives.Named(name, fn) }

// NewBuilder starts a fluent machine definition.
func NewBuilder(id, initial string) *MachineBuilder {
	return primitives.NewMachineBuilder(id, initial)
}

// NewCatalog creates an empty catalog of named guards and actions.
func NewCatalog() *Catalog { return extensibility.NewCatalog() }

// LoadFile reads a YAML or JSON machine definition.
func LoadFile(path string) (MachineConfig, error) { return primitives.LoadFile(path) }

// NewDefinition validates cfg.
func NewDefinition(cfg MachineConfig) (*Definition, error) { return core.NewDefinition(cfg) }

// NewMachine creates an instance of def whose string guards and actions
// resolve through catalog (which may be nil). opts are applied after the
// catalog wiring and can replace it.
func NewMachine(def *Definition, catalog *Catalog, opts ...Option) *Machine {
	base := []Option{
		core.WithGuardEvaluator(extensibility.NewGuardEvaluator(catalog)),
		core.WithActionRunner(extensibility.NewActionRunner(catalog, nil)),
	}
	return core.NewMachine(def, append(base, opts...)...)
}

// New validates cfg and creates one instance of it.
func New(cfg MachineConfig, catalog *Catalog, opts ...Option) (*Machine, error) {
	def, err := core.NewDefinition(cfg)
	if err != nil {
		return nil, err
	}
	return NewMachine(def, catalog, opts...), nil
}
