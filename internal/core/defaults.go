package core

import (
	"fmt"

	"github.com/comalice/chartkit/internal/primitives"
)

// funcRunner runs function action references. String references need a
// catalog-aware runner from the extensibility package.
type funcRunner struct{}

func (funcRunner) Run(ctx *primitives.Context, action primitives.ActionRef, event primitives.Event) error {
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
			return fmt.Errorf("action %q has no function", a.Name)
		}
		return a.Fn(ctx, event)
	case string:
		return fmt.Errorf("action %q not registered", a)
	default:
		return fmt.Errorf("unsupported action type %T", action)
	}
}

// funcGuards evaluates function guard references.
type funcGuards struct{}

func (funcGuards) Eval(ctx *primitives.Context, guard primitives.GuardRef, event primitives.Event) (bool, error) {
	switch g := guard.(type) {
	case nil:
		return true, nil
	case bool:
		return g, nil
	case func(*primitives.Context, primitives.Event) bool:
		return g(ctx, event), nil
	case primitives.GuardFunc:
		return g(ctx, event), nil
	case string:
		return false, fmt.Errorf("guard %q not registered", g)
	default:
		return false, fmt.Errorf("unsupported guard type %T", guard)
	}
}
