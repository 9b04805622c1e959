// TransitionConfig defines transitions between states with guards and actions.
//
// Targets are state references: a bare state ID, "#id", or a dot-separated
// path from a top-level state ("parent.child"). A transition without targets
// is targetless: its actions run but no state is exited or entered.
// Transitions registered under the same event keep declaration order, which is
// the tie-break when several of them are enabled.
package primitives

import (
	"errors"
	"fmt"
	"strings"
)

// ActionRef references an action. Accepted forms are a string (catalog name
// or built-in action kind), func(*Context, Event), func(*Context, Event) error,
// ActionFunc and NamedAction.
type ActionRef any

// GuardRef references a guard condition. Accepted forms are a string (catalog
// name or expression), func(*Context, Event) bool and GuardFunc.
type GuardRef any

// ActionFunc is the canonical action signature.
type ActionFunc func(ctx *Context, evt Event) error

// GuardFunc is the canonical guard signature. Guards must not mutate ctx.
type GuardFunc func(ctx *Context, evt Event) bool

// NamedAction attaches a stable name to an action function so it shows up
// readably in transition reports.
type NamedAction struct {
	Name string
	Fn   ActionFunc
}

// Named wraps fn with a report name.
func Named(name string, fn ActionFunc) NamedAction {
	return NamedAction{Name: name, Fn: fn}
}

// TransitionConfig defines a single transition triggered by an Event.
type TransitionConfig struct {
	Event    string      `json:"event,omitempty" yaml:"event,omitempty"`
	Guard    GuardRef    `json:"guard,omitempty" yaml:"guard,omitempty"`
	Target   string      `json:"target,omitempty" yaml:"target,omitempty"`
	Targets  []string    `json:"targets,omitempty" yaml:"targets,omitempty"`
	Actions  []ActionRef `json:"actions,omitempty" yaml:"actions,omitempty"`
	Internal bool        `json:"internal,omitempty" yaml:"internal,omitempty"`
}

// TargetRefs returns Target followed by Targets, skipping empty entries.
func (t *TransitionConfig) TargetRefs() []string {
	var refs []string
	if t.Target != "" {
		refs = append(refs, t.Target)
	}
	for _, ref := range t.Targets {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// IsTargetless reports whether the transition names no target.
func (t *TransitionConfig) IsTargetless() bool {
	return len(t.TargetRefs()) == 0
}

// Validate checks TransitionConfig fields and target path syntax.
// Event is optional here because transitions stored in an On map take their
// pattern from the map key.
func (t *TransitionConfig) Validate() error {
	if t.Internal && t.IsTargetless() {
		return errors.New("internal transition requires a target")
	}
	for _, ref := range t.TargetRefs() {
		if err := validateRef(ref); err != nil {
			return err
		}
	}
	return nil
}

// validateRef checks dot-separated non-empty segments made of letters,
// digits, '_' and '-'. A leading '#' marks an ID reference.
func validateRef(ref string) error {
	path := strings.TrimPrefix(ref, "#")
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return fmt.Errorf("invalid target path %q: empty segment at index %d", ref, i)
		}
		for _, r := range seg {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
				return fmt.Errorf("invalid target path %q: invalid character '%c' at index %d", ref, r, i)
			}
		}
	}
	return nil
}
