package core

import (
	"errors"

	"github.com/comalice/chartkit/internal/primitives"
)

// Definition is a validated machine definition: the declarative config, its
// state graph and a version. It is immutable and can back any number of
// Machines.
type Definition struct {
	config  primitives.MachineConfig
	graph   *Graph
	version string
}

// NewDefinition builds the graph for cfg and validates it.
func NewDefinition(cfg primitives.MachineConfig) (*Definition, error) {
	g, err := BuildGraph(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		var de *DefinitionError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &DefinitionError{Code: CodeInvalidState, Message: err.Error()}
	}
	return &Definition{
		config:  cfg,
		graph:   g,
		version: primitives.ComputeVersion(&cfg),
	}, nil
}

// MustDefinition is NewDefinition for static definitions; it panics on error.
func MustDefinition(cfg primitives.MachineConfig) *Definition {
	d, err := NewDefinition(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// ID returns the machine ID of the definition.
func (d *Definition) ID() string { return d.config.ID }

// Config returns the declarative config the definition was built from.
func (d *Definition) Config() primitives.MachineConfig { return d.config }

// Graph returns the state graph.
func (d *Definition) Graph() *Graph { return d.graph }

// Version returns the pinned or computed definition version.
func (d *Definition) Version() string { return d.version }
