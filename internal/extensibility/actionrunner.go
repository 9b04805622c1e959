package extensibility

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/logging"
	"github.com/comalice/chartkit/internal/primitives"
)

// Built-in action kinds usable as string refs, e.g. "inc:retries" or
// "set:status=ready".
const (
	ActionSet   = "set"
	ActionUnset = "unset"
	ActionInc   = "inc"
	ActionDec   = "dec"
	ActionLog   = "log"
)

// DefaultActionRunner provides the default implementation of ActionRunner.
// String refs resolve through Catalog first, then as built-in action kinds.
type DefaultActionRunner struct {
	Catalog *Catalog
	Logger  *slog.Logger
}

// NewActionRunner returns a runner backed by catalog (may be nil). The logger
// receives the output of "log:" actions.
func NewActionRunner(catalog *Catalog, logger *slog.Logger) *DefaultActionRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DefaultActionRunner{Catalog: catalog, Logger: logger}
}

// Run executes the given action reference.
func (r *DefaultActionRunner) Run(ctx *primitives.Context, action primitives.ActionRef, event primitives.Event) error {
	switch a := action.(type) {
	case nil:
		return nil
	case func(*primitives.Context, primitives.Event):
		a(ctx, event)
		return nil
	case func(*primitives.Context, primitives.Event) error:
		return a(ctx, event)
	case primitives.ActionFunc:
		return a(ctx, event)
	case primitives.NamedAction:
		if a.Fn == nil {
			return nil
		}
		return a.Fn(ctx, event)
	case string:
		if fn, ok := r.Catalog.Action(a); ok {
			return fn(ctx, event)
		}
		return r.builtin(ctx, a, event)
	default:
		return fmt.Errorf("unknown action type: %T", action)
	}
}

// builtin runs "kind:arg" actions.
//
//	set:key=value  stores value (bool, int, float or string)
//	set:key        stores the event data
//	unset:key      deletes key
//	inc:key[=n]    adds n (default 1) to an integer value, missing counts as 0
//	dec:key[=n]    subtracts n
//	log:message    logs message at INFO
func (r *DefaultActionRunner) builtin(ctx *primitives.Context, ref string, event primitives.Event) error {
	kind, arg, ok := strings.Cut(ref, ":")
	if !ok || arg == "" {
		return fmt.Errorf("action %q not registered", ref)
	}
	switch kind {
	case ActionSet:
		key, raw, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			ctx.Set(key, event.Data)
			return nil
		}
		ctx.Set(key, ParseValue(raw))
	case ActionUnset:
		ctx.Delete(arg)
	case ActionInc, ActionDec:
		key, raw, hasStep := strings.Cut(arg, "=")
		step := 1
		if hasStep {
			n, err := cast.ToIntE(raw)
			if err != nil {
				return fmt.Errorf("action %q: bad step: %w", ref, err)
			}
			step = n
		}
		if kind == ActionDec {
			step = -step
		}
		cur := 0
		if v, found := ctx.Get(key); found && v != nil {
			n, err := cast.ToIntE(v)
			if err != nil {
				return fmt.Errorf("action %q: %s is not a number: %w", ref, key, err)
			}
			cur = n
		}
		ctx.Set(key, cur+step)
	case ActionLog:
		r.Logger.Info(arg, "event", event.Type)
	default:
		return fmt.Errorf("action %q not registered", ref)
	}
	return nil
}

// ParseValue converts a literal from a definition into a bool, int, float64
// or, failing those, the string itself. Surrounding quotes force a string.
func ParseValue(raw string) any {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "nil", "null":
		return nil
	}
	if n, err := cast.ToIntE(s); err == nil && !strings.ContainsAny(s, ".eE") {
		return n
	}
	if f, err := cast.ToFloat64E(s); err == nil {
		return f
	}
	return s
}

// LoggingActionRunner wraps an ActionRunner and logs every execution.
type LoggingActionRunner struct {
	inner  core.ActionRunner
	logger *slog.Logger
}

// NewLoggingActionRunner creates a new LoggingActionRunner wrapping the given inner runner.
func NewLoggingActionRunner(inner core.ActionRunner, logger *slog.Logger) *LoggingActionRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LoggingActionRunner{inner: inner, logger: logger}
}

// Run logs before and after delegating to the inner runner.
func (r *LoggingActionRunner) Run(ctx *primitives.Context, action primitives.ActionRef, event primitives.Event) error {
	name := core.RefName(action)
	r.logger.Debug("executing action", "action", name, "event", event.Type)
	start := time.Now()
	err := r.inner.Run(ctx, action, event)
	if err != nil {
		r.logger.Warn("action failed", "action", name, "event", event.Type, "duration", time.Since(start), "error", err)
		return err
	}
	r.logger.Debug("action completed", "action", name, "event", event.Type, "duration", time.Since(start))
	return nil
}
