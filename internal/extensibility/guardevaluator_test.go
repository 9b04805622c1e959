package extensibility

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartkit/internal/primitives"
)

func TestDefaultGuardEvaluator_FuncForms(t *testing.T) {
	ctx := primitives.NewContext()
	event := primitives.NewEvent("test", nil)
	e := &DefaultGuardEvaluator{}

	ok, err := e.Eval(ctx, nil, event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(ctx, false, event)
	require.NoError(t, err)
	assert.False(t, ok)

	called := false
	ok, err = e.Eval(ctx, func(*primitives.Context, primitives.Event) bool { called = true; return true }, event)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, called)

	ok, err = e.Eval(ctx, primitives.GuardFunc(func(*primitives.Context, primitives.Event) bool { return false }), event)
	require.NoError(t, err)
	assert.False(t, ok)

	errBad := errors.New("bad")
	_, err = e.Eval(ctx, func(*primitives.Context, primitives.Event) (bool, error) { return false, errBad }, event)
	assert.ErrorIs(t, err, errBad)

	_, err = e.Eval(ctx, 3.14, event)
	assert.Error(t, err)
}

func TestDefaultGuardEvaluator_UnknownStringFailsClosed(t *testing.T) {
	e := &DefaultGuardEvaluator{}
	ok, err := e.Eval(primitives.NewContext(), "isAdmin", primitives.NewEvent("test", nil))
	assert.False(t, ok)
	assert.EqualError(t, err, `guard "isAdmin" not registered`)
}

func TestDefaultGuardEvaluator_CatalogAndNegation(t *testing.T) {
	catalog := NewCatalog().RegisterGuard("isAdmin", func(ctx *primitives.Context, _ primitives.Event) bool {
		role, _ := ctx.Get("role")
		return role == "admin"
	})
	e := NewGuardEvaluator(catalog)
	ctx := primitives.NewContextFrom(map[string]any{"role": "admin", "age": 30})
	event := primitives.NewEvent("test", nil)

	ok, err := e.Eval(ctx, "isAdmin", event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(ctx, "!isAdmin", event)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown names fall through to expressions.
	ok, err = e.Eval(ctx, "age >= 18", event)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Eval(ctx, "isGuest", event)
	assert.Error(t, err)
}

func TestExpressionGuardEvaluator(t *testing.T) {
	ctx := primitives.NewContextFrom(map[string]any{
		"temp":     35.5,
		"count":    3,
		"jsonNum":  float64(2),
		"loggedIn": true,
		"status":   "ready",
		"empty":    nil,
	})
	e := NewExpressionGuardEvaluator()
	event := primitives.NewEvent("test", nil)

	tests := []struct {
		expr string
		want bool
	}{
		{"temp > 30", true},
		{"temp < 30", false},
		{"temp >= 35.5", true},
		{"temp <= 35", false},
		{"count < 3", false},
		{"count <= 3", true},
		{"count == 3", true},
		{"count != 3", false},
		{"jsonNum == 2", true},
		{"loggedIn == true", true},
		{"loggedIn != false", true},
		{"status == ready", true},
		{`status == "ready"`, true},
		{"status != done", true},
		{"empty == nil", true},
		{"missing == nil", true},
		{"missing == 1", false},
		{"missing != 1", true},
		{"missing > 1", false},
	}
	for _, tt := range tests {
		got, err := e.Eval(ctx, tt.expr, event)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestExpressionGuardEvaluator_Errors(t *testing.T) {
	ctx := primitives.NewContextFrom(map[string]any{"status": "ready", "n": 1})
	e := NewExpressionGuardEvaluator()
	event := primitives.NewEvent("test", nil)

	for _, expr := range []string{"status", "n ~= 1", "status > 3", "n > abc", "a b c d"} {
		_, err := e.Eval(ctx, expr, event)
		assert.Error(t, err, expr)
	}
	_, err := e.Eval(ctx, 7, event)
	assert.Error(t, err)

	ok, err := e.Eval(ctx, nil, event)
	require.NoError(t, err)
	assert.True(t, ok)
}
