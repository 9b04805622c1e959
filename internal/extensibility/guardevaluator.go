package extensibility

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

// DefaultGuardEvaluator provides the default implementation of GuardEvaluator.
// String guards resolve through Catalog; a leading '!' negates a named guard.
// Strings the catalog does not know go to Fallback, and fail closed with an
// error when there is none.
type DefaultGuardEvaluator struct {
	Catalog  *Catalog
	Fallback core.GuardEvaluator
}

// NewGuardEvaluator returns an evaluator that tries catalog names first and
// then simple expressions.
func NewGuardEvaluator(catalog *Catalog) *DefaultGuardEvaluator {
	return &DefaultGuardEvaluator{Catalog: catalog, Fallback: NewExpressionGuardEvaluator()}
}

// Eval evaluates a guard condition.
func (e *DefaultGuardEvaluator) Eval(ctx *primitives.Context, guard primitives.GuardRef, event primitives.Event) (bool, error) {
	switch g := guard.(type) {
	case nil:
		return true, nil
	case bool:
		return g, nil
	case func(*primitives.Context, primitives.Event) bool:
		return g(ctx, event), nil
	case primitives.GuardFunc:
		return g(ctx, event), nil
	case func(*primitives.Context, primitives.Event) (bool, error):
		return g(ctx, event)
	case string:
		name, negate := strings.CutPrefix(strings.TrimSpace(g), "!")
		if fn, ok := e.Catalog.Guard(name); ok {
			return fn(ctx, event) != negate, nil
		}
		if e.Fallback != nil {
			return e.Fallback.Eval(ctx, g, event)
		}
		return false, fmt.Errorf("guard %q not registered", g)
	default:
		return false, fmt.Errorf("unknown guard type: %T", guard)
	}
}

// ExpressionGuardEvaluator evaluates simple string expressions like
// "temp > 30" or "loggedIn == true" against the context. Supported operators
// are == != > >= < <=. A missing key makes every comparison false except
// "== nil".
type ExpressionGuardEvaluator struct{}

// NewExpressionGuardEvaluator creates a new ExpressionGuardEvaluator.
func NewExpressionGuardEvaluator() *ExpressionGuardEvaluator {
	return &ExpressionGuardEvaluator{}
}

// Eval parses and evaluates the expression. Malformed expressions and
// ordering comparisons on non-numeric values return an error.
func (e *ExpressionGuardEvaluator) Eval(ctx *primitives.Context, guard primitives.GuardRef, event primitives.Event) (bool, error) {
	if guard == nil {
		return true, nil
	}
	expr, ok := guard.(string)
	if !ok {
		return false, fmt.Errorf("expression guard must be a string, got %T", guard)
	}
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return false, fmt.Errorf("guard %q: want \"key op value\"", expr)
	}
	key, op, literal := parts[0], parts[1], ParseValue(parts[2])

	v, found := ctx.Get(key)
	switch op {
	case "==", "!=":
		eq := found && equalValues(v, literal)
		if !found {
			eq = literal == nil
		}
		return eq == (op == "=="), nil
	case ">", ">=", "<", "<=":
		if !found {
			return false, nil
		}
		want, err := cast.ToFloat64E(literal)
		if err != nil {
			return false, fmt.Errorf("guard %q: %w", expr, err)
		}
		got, err := cast.ToFloat64E(v)
		if err != nil {
			return false, fmt.Errorf("guard %q: %s is not a number: %w", expr, key, err)
		}
		switch op {
		case ">":
			return got > want, nil
		case ">=":
			return got >= want, nil
		case "<":
			return got < want, nil
		default:
			return got <= want, nil
		}
	default:
		return false, fmt.Errorf("guard %q: unknown operator %q", expr, op)
	}
}

// equalValues compares a context value with a parsed literal, coercing the
// context value to the literal's kind.
func equalValues(v, literal any) bool {
	switch want := literal.(type) {
	case nil:
		return v == nil
	case bool:
		got, err := cast.ToBoolE(v)
		return err == nil && got == want
	case int, float64:
		got, err := cast.ToFloat64E(v)
		return err == nil && got == cast.ToFloat64(want)
	default:
		got, err := cast.ToStringE(v)
		return err == nil && got == cast.ToString(want)
	}
}
