package core

import (
	"log/slog"

	"github.com/comalice/chartkit/internal/primitives"
)

// DefaultMaxMicrosteps bounds the eventless microsteps of one macrostep.
const DefaultMaxMicrosteps = 100

// Option applies configuration to Machine via functional options pattern.
type Option func(*Machine)

// WithActionRunner configures the Machine with a custom ActionRunner.
func WithActionRunner(r ActionRunner) Option {
	return func(m *Machine) {
		m.actionRunner = r
	}
}

// WithGuardEvaluator configures the Machine with a custom GuardEvaluator.
func WithGuardEvaluator(e GuardEvaluator) Option {
	return func(m *Machine) {
		m.guardEval = e
	}
}

// WithPersister saves a snapshot after every macrostep that changed state.
func WithPersister(p Persister) Option {
	return func(m *Machine) {
		m.persister = p
	}
}

// WithPublisher configures the Machine with a custom EventPublisher.
func WithPublisher(pb EventPublisher) Option {
	return func(m *Machine) {
		m.publisher = pb
	}
}

// WithVisualizer configures the Machine with a custom Visualizer.
func WithVisualizer(v Visualizer) Option {
	return func(m *Machine) {
		m.visualizer = v
	}
}

// WithRegistry configures the Machine with a custom Registry for versioning snapshots.
func WithRegistry(r Registry) Option {
	return func(m *Machine) {
		m.registry = r
	}
}

// WithObserver adds an Observer; observers are called in registration order.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		m.observers = append(m.observers, o)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMaxMicrosteps overrides DefaultMaxMicrosteps. Values below 1 are ignored.
func WithMaxMicrosteps(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxMicrosteps = n
		}
	}
}

// WithContext seeds the machine with an existing extended state.
func WithContext(ctx *primitives.Context) Option {
	return func(m *Machine) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithID overrides the generated instance ID.
func WithID(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.id = id
		}
	}
}
