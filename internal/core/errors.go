package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDefinition = errors.New("invalid machine definition")
	ErrGuardFailed       = errors.New("guard evaluation failed")
	ErrActionFailed      = errors.New("action execution failed")
	ErrInfiniteLoop      = errors.New("eventless transitions did not converge")
	ErrReentrantSend     = errors.New("machine is already processing an event")
	ErrNotStarted        = errors.New("machine not started")
	ErrStopped           = errors.New("machine stopped")
	ErrSnapshotMismatch  = errors.New("snapshot does not match machine definition")
)

// DefinitionCode classifies a definition validation failure.
type DefinitionCode string

const (
	CodeDuplicateID       DefinitionCode = "DUPLICATE_ID"
	CodeDanglingTarget    DefinitionCode = "DANGLING_TARGET"
	CodeOrphan            DefinitionCode = "ORPHAN"
	CodeMissingDefault    DefinitionCode = "MISSING_DEFAULT"
	CodeParallelRegions   DefinitionCode = "PARALLEL_REGIONS"
	CodeHistoryPlacement  DefinitionCode = "HISTORY_PLACEMENT"
	CodeInvalidTransition DefinitionCode = "INVALID_TRANSITION"
	CodeInvalidState      DefinitionCode = "INVALID_STATE"
)

// DefinitionError reports a machine definition rejected at build time.
type DefinitionError struct {
	Code    DefinitionCode
	StateID string
	Message string
}

func (e *DefinitionError) Error() string {
	if e.StateID == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] state %q: %s", e.Code, e.StateID, e.Message)
}

func (e *DefinitionError) Unwrap() error { return ErrInvalidDefinition }

func defErr(code DefinitionCode, stateID, format string, args ...any) *DefinitionError {
	return &DefinitionError{Code: code, StateID: stateID, Message: fmt.Sprintf(format, args...)}
}

// ErrorKind tells which collaborator failed during a macrostep.
type ErrorKind string

const (
	KindGuard  ErrorKind = "guard"
	KindAction ErrorKind = "action"
)

// MachineError is returned by Send and Start when a guard or action fails.
// Report holds what was committed before the failure.
type MachineError struct {
	Kind    ErrorKind
	Event   string
	StateID string
	Action  string
	Err     error
	Report  TransitionReport
}

func (e *MachineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Kind)
	if e.Action != "" {
		fmt.Fprintf(&b, " (%s)", e.Action)
	}
	if e.StateID != "" {
		fmt.Fprintf(&b, " in state %q", e.StateID)
	}
	if e.Event != "" {
		fmt.Fprintf(&b, " on event %q", e.Event)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MachineError) Unwrap() []error {
	sentinel := ErrActionFailed
	if e.Kind == KindGuard {
		sentinel = ErrGuardFailed
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// InfiniteLoopError is returned when eventless transitions keep firing past
// the microstep limit. Configuration is the last committed configuration.
type InfiniteLoopError struct {
	Limit         int
	Configuration []string
}

func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("eventless transitions exceeded %d microsteps (configuration %v)", e.Limit, e.Configuration)
}

func (e *InfiniteLoopError) Unwrap() error { return ErrInfiniteLoop }

// PanicError wraps a value recovered from a guard or action.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
