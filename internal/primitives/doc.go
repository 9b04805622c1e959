// Package primitives provides the declarative data structures of the statechart engine.
//
// Everything here is plain data: events, the extended-state Context, and the
// StateConfig / TransitionConfig / MachineConfig trees that describe a chart.
// Nothing in this package executes a chart; see internal/core for that.
//
// Core invariants:
//   - Event values are treated as immutable once created
//   - Context is safe for concurrent access and cheap to snapshot
//   - Configs carry only serializable fields plus opaque guard/action refs
//
// Configs can be written as Go literals, with MachineBuilder, or loaded from
// YAML/JSON with ParseYAML and ParseJSON.
package primitives
