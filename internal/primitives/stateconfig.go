// StateConfig represents a state in the statechart, supporting atomic, compound, parallel,
// and history state types with transitions, actions, and hierarchical nesting.
package primitives

import (
	"errors"
	"fmt"
	"strings"
)

// StateType defines the possible types of states in the statechart.
type StateType string

const (
	Atomic         StateType = "atomic"
	Compound       StateType = "compound"
	Parallel       StateType = "parallel"
	ShallowHistory StateType = "shallowHistory"
	DeepHistory    StateType = "deepHistory"
)

// IsHistory reports whether t is one of the history pseudostate types.
func (t StateType) IsHistory() bool {
	return t == ShallowHistory || t == DeepHistory
}

// StateConfig defines a state configuration, supporting hierarchical nesting.
type StateConfig struct {
	ID          string                        `json:"id" yaml:"id"`
	Type        StateType                     `json:"type" yaml:"type"`
	Description string                        `json:"description,omitempty" yaml:"description,omitempty"`
	Initial     string                        `json:"initial,omitempty" yaml:"initial,omitempty"` // Initial child for compound
	On          map[string][]TransitionConfig `json:"on,omitempty" yaml:"on,omitempty"`
	Always      []TransitionConfig            `json:"always,omitempty" yaml:"always,omitempty"`
	Entry       []ActionRef                   `json:"entry,omitempty" yaml:"entry,omitempty"`
	Exit        []ActionRef                   `json:"exit,omitempty" yaml:"exit,omitempty"`
	Children    []*StateConfig                `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewStateConfig creates a new StateConfig with ID and Type.
func NewStateConfig(id string, typ StateType) *StateConfig {
	return &StateConfig{
		ID:   id,
		Type: typ,
	}
}

// WithInitial sets the initial child state ID (for compound).
func (s *StateConfig) WithInitial(initial string) *StateConfig {
	s.Initial = initial
	return s
}

// WithOn sets the event-to-transition map.
func (s *StateConfig) WithOn(on map[string][]TransitionConfig) *StateConfig {
	s.On = make(map[string][]TransitionConfig)
	for k, v := range on {
		s.On[k] = v
	}
	return s
}

// AddTransition adds a transition for an event.
func (s *StateConfig) AddTransition(event string, trans TransitionConfig) *StateConfig {
	if s.On == nil {
		s.On = make(map[string][]TransitionConfig)
	}
	trans.Event = event
	s.On[event] = append(s.On[event], trans)
	return s
}

// AddAlways adds an eventless transition.
func (s *StateConfig) AddAlways(trans TransitionConfig) *StateConfig {
	s.Always = append(s.Always, trans)
	return s
}

// WithEntry sets entry actions.
func (s *StateConfig) WithEntry(entry ...ActionRef) *StateConfig {
	s.Entry = entry
	return s
}

// AddEntry adds an entry action.
func (s *StateConfig) AddEntry(action ActionRef) *StateConfig {
	s.Entry = append(s.Entry, action)
	return s
}

// WithExit sets exit actions.
func (s *StateConfig) WithExit(exit ...ActionRef) *StateConfig {
	s.Exit = exit
	return s
}

// AddExit adds an exit action.
func (s *StateConfig) AddExit(action ActionRef) *StateConfig {
	s.Exit = append(s.Exit, action)
	return s
}

// WithChildren sets child states.
func (s *StateConfig) WithChildren(children ...*StateConfig) *StateConfig {
	s.Children = children
	return s
}

// AddChild adds a child state.
func (s *StateConfig) AddChild(child *StateConfig) *StateConfig {
	s.Children = append(s.Children, child)
	return s
}

// State creates and adds a child state (atomic by default, or specified type).
// Returns the child for fluent chaining: parent.State("child").Transition("evt", "target").
func (s *StateConfig) State(id string, typ ...StateType) *StateConfig {
	t := Atomic
	if len(typ) > 0 {
		t = typ[0]
	}
	child := NewStateConfig(id, t)
	s.AddChild(child)
	return child
}

// Transition adds a simple transition from event to target.
// Optionally override with full TransitionConfig via first arg; its Target is
// filled in when left empty.
func (s *StateConfig) Transition(event, target string, transOpts ...TransitionConfig) *StateConfig {
	trans := TransitionConfig{Target: target}
	if len(transOpts) > 0 {
		trans = transOpts[0]
		if trans.Target == "" && len(trans.Targets) == 0 {
			trans.Target = target
		}
	}
	return s.AddTransition(event, trans)
}

// DefaultChild returns the child entered by default: the declared Initial or
// the first non-history child. Nil for states without children.
func (s *StateConfig) DefaultChild() *StateConfig {
	if s.Initial != "" {
		for _, child := range s.Children {
			if child.ID == s.Initial {
				return child
			}
		}
		return nil
	}
	for _, child := range s.Children {
		if !child.Type.IsHistory() {
			return child
		}
	}
	return nil
}

// Regions returns the non-history children of s.
func (s *StateConfig) Regions() []*StateConfig {
	var regions []*StateConfig
	for _, child := range s.Children {
		if !child.Type.IsHistory() {
			regions = append(regions, child)
		}
	}
	return regions
}

// Flatten returns a flat map[string]*StateConfig by recursing the entire hierarchy from this root.
func (s *StateConfig) Flatten() map[string]*StateConfig {
	m := make(map[string]*StateConfig)
	s.flattenHelper(m)
	return m
}

func (s *StateConfig) flattenHelper(m map[string]*StateConfig) {
	if _, ok := m[s.ID]; ok {
		return
	}
	m[s.ID] = s
	for _, child := range s.Children {
		child.flattenHelper(m)
	}
}

// Validate performs recursive shape validation of the StateConfig tree.
// Cross-references (targets, uniqueness, reachability) are checked when the
// state graph is built.
func (s *StateConfig) Validate() error {
	if s.ID == "" {
		return errors.New("state ID is required")
	}
	if strings.Contains(s.ID, ".") || strings.HasPrefix(s.ID, "#") {
		return fmt.Errorf("state ID %q must not contain '.' or start with '#'", s.ID)
	}

	switch s.Type {
	case Atomic:
		if s.Initial != "" {
			return fmt.Errorf("atomic state %s cannot have Initial", s.ID)
		}
		if len(s.Children) > 0 {
			return fmt.Errorf("atomic state %s cannot have Children", s.ID)
		}
	case Compound:
		if len(s.Regions()) == 0 {
			return fmt.Errorf("%s state %s requires Children", s.Type, s.ID)
		}
		if s.Initial != "" {
			child := s.DefaultChild()
			if child == nil {
				return fmt.Errorf("initial child %q not found in children of %s", s.Initial, s.ID)
			}
			if child.Type.IsHistory() {
				return fmt.Errorf("initial child %q of %s cannot be a history state", s.Initial, s.ID)
			}
		}
	case Parallel:
		if s.Initial != "" {
			return fmt.Errorf("parallel state %s cannot have Initial (all regions are entered)", s.ID)
		}
		regions := s.Regions()
		if len(regions) < 2 {
			return fmt.Errorf("parallel state %s requires at least 2 regions, has %d", s.ID, len(regions))
		}
		for _, r := range regions {
			if r.Type != Atomic && r.Type != Compound {
				return fmt.Errorf("region %s of parallel state %s must be atomic or compound, got %s", r.ID, s.ID, r.Type)
			}
		}
	case ShallowHistory, DeepHistory:
		if len(s.Children) > 0 {
			return fmt.Errorf("history state %s cannot have Children (restored at runtime)", s.ID)
		}
		if len(s.On) > 0 || len(s.Always) > 0 || len(s.Entry) > 0 || len(s.Exit) > 0 {
			return fmt.Errorf("history state %s cannot declare transitions or actions", s.ID)
		}
	default:
		return fmt.Errorf("invalid state type %q for state %s", s.Type, s.ID)
	}

	for event, transitions := range s.On {
		if strings.TrimSpace(event) == "" {
			return fmt.Errorf("empty event name in On map for state %s", s.ID)
		}
		if event == AlwaysEvent {
			return fmt.Errorf("event %q is reserved for eventless transitions in state %s; use Always", event, s.ID)
		}
		for i := range transitions {
			if err := transitions[i].Validate(); err != nil {
				return fmt.Errorf("state %s, event %q, transition %d: %w", s.ID, event, i, err)
			}
		}
	}
	for i := range s.Always {
		if err := s.Always[i].Validate(); err != nil {
			return fmt.Errorf("state %s, always transition %d: %w", s.ID, i, err)
		}
	}

	for i, child := range s.Children {
		if err := child.Validate(); err != nil {
			return fmt.Errorf("child %d (%s) of %s failed validation: %w", i, child.ID, s.ID, err)
		}
	}

	return nil
}
