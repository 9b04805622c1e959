// MachineConfig represents the top-level configuration of a statechart machine,
// containing the machine ID, initial state, and map of top-level states by ID.
// States support hierarchical nesting via the Children field.
//
// Validate checks the shape of every state. Cross-references (unique IDs,
// target resolution, reachability) are checked by core.BuildGraph, which needs
// the whole hierarchy.

package primitives

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MachineConfig defines the complete statechart configuration.
type MachineConfig struct {
	Version     string                  `json:"version,omitempty" yaml:"version,omitempty"`
	ID          string                  `json:"id" yaml:"id"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Initial     string                  `json:"initial" yaml:"initial"`
	States      map[string]*StateConfig `json:"states" yaml:"states"`
}

// Validate validates the machine configuration:
// - Non-empty ID and Initial
// - Non-empty States, keyed by the state's own ID
// - All individual states validate (recursive)
func (m *MachineConfig) Validate() error {
	if m.ID == "" {
		return errors.New("machine ID is required")
	}
	if m.Initial == "" {
		return errors.New("initial state ID is required")
	}
	if len(m.States) == 0 {
		return errors.New("states map is required and cannot be empty")
	}

	for _, key := range m.TopLevelIDs() {
		state := m.States[key]
		if state == nil {
			return fmt.Errorf("state %q is nil", key)
		}
		if state.ID == "" {
			state.ID = key
		}
		if state.ID != key {
			return fmt.Errorf("state key %q does not match state ID %q", key, state.ID)
		}
		if err := state.Validate(); err != nil {
			return fmt.Errorf("state %q validation failed: %w", key, err)
		}
	}
	return nil
}

// TopLevelIDs returns the keys of States in sorted order.
func (m *MachineConfig) TopLevelIDs() []string {
	ids := make([]string, 0, len(m.States))
	for id := range m.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindState resolves a state by ID anywhere in the hierarchy, by "#id", or by
// hierarchical path (e.g. "parent.child.grandchild").
func (m *MachineConfig) FindState(ref string) (*StateConfig, error) {
	if ref == "" {
		return nil, errors.New("path cannot be empty")
	}
	if id, ok := strings.CutPrefix(ref, "#"); ok {
		ref = id
	}
	if !strings.Contains(ref, ".") {
		for _, key := range m.TopLevelIDs() {
			if s, ok := m.States[key].Flatten()[ref]; ok {
				return s, nil
			}
		}
		return nil, fmt.Errorf("state %q not found", ref)
	}
	segments := strings.Split(ref, ".")
	current, ok := m.States[segments[0]]
	if !ok {
		return nil, fmt.Errorf("state %q not found", segments[0])
	}
	for i := 1; i < len(segments); i++ {
		seg := segments[i]
		found := false
		for _, child := range current.Children {
			if child.ID == seg {
				current = child
				found = true
				break
			}
		}
		if !found {
			prefix := strings.Join(segments[:i], ".")
			return nil, fmt.Errorf("child %q not found in %q", seg, prefix)
		}
	}
	return current, nil
}
