package core

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/comalice/chartkit/internal/primitives"
)

// TransitionReport describes one macrostep: the event, the states exited and
// entered in execution order, the actions executed and the resulting
// configuration.
type TransitionReport struct {
	Event         primitives.Event `json:"event" yaml:"event"`
	Exited        []string         `json:"exited,omitempty" yaml:"exited,omitempty"`
	Entered       []string         `json:"entered,omitempty" yaml:"entered,omitempty"`
	Actions       []string         `json:"actions,omitempty" yaml:"actions,omitempty"`
	Microsteps    int              `json:"microsteps" yaml:"microsteps"`
	Configuration []string         `json:"configuration" yaml:"configuration"`
}

// Changed reports whether any state was exited or entered.
func (r TransitionReport) Changed() bool {
	return len(r.Exited) > 0 || len(r.Entered) > 0
}

// String renders "EVENT: a, b -> c (n microsteps)".
func (r TransitionReport) String() string {
	if r.Microsteps == 0 {
		return fmt.Sprintf("%s: no transition %v", r.Event.Type, r.Configuration)
	}
	return fmt.Sprintf("%s: %s -> %s %v (%d microsteps)",
		r.Event.Type, strings.Join(r.Exited, ", "), strings.Join(r.Entered, ", "), r.Configuration, r.Microsteps)
}

// RefName returns a readable name for a guard or action reference: the
// string itself, the NamedAction name or the function name.
func RefName(ref any) string {
	switch v := ref.(type) {
	case nil:
		return ""
	case string:
		return v
	case primitives.NamedAction:
		return v.Name
	case fmt.Stringer:
		return v.String()
	}
	rv := reflect.ValueOf(ref)
	if rv.Kind() == reflect.Func {
		if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
			name := fn.Name()
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
			return name
		}
	}
	return fmt.Sprintf("%T", ref)
}
