// Event provides the immutable event primitive for statechart transitions.
//
// Events are value types designed for zero-allocation creation via stack allocation.
// Once created, Events should not be mutated. Use NewEvent for construction.
//
// # Immutability
//
// Event fields are exported for convenience in read-only contexts, but consumers MUST
// NOT modify them after construction.
//
// Example:
//
//	event := NewEvent("transition", MyPayload{Value: 42})
package primitives

// AlwaysEvent is the type of the synthetic event used while evaluating
// eventless (always) transitions. Its Data holds the Event that started the
// macrostep, or nil while the machine is starting.
const AlwaysEvent = "always"

// Wildcard matches every external event type.
const Wildcard = "*"

type Event struct {
	Type string `json:"type" yaml:"type"`
	Data any    `json:"data,omitempty" yaml:"data,omitempty"`
}

// NewEvent creates and returns a new immutable Event.
func NewEvent(eventType string, data any) Event {
	return Event{
		Type: eventType,
		Data: data,
	}
}

// IsAlways reports whether e is the synthetic eventless pseudo-event.
func (e Event) IsAlways() bool {
	return e.Type == AlwaysEvent
}
