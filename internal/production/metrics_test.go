package production

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

func TestMetricsObserver_WithMachine(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	def, err := core.NewDefinition(lightConfig())
	require.NoError(t, err)
	m := core.NewMachine(def, core.WithObserver(obs))
	_, err = m.Start(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = m.Send(context.Background(), primitives.NewEvent("FLIP", nil))
		require.NoError(t, err)
	}
	_, err = m.Send(context.Background(), primitives.NewEvent("UNKNOWN", nil))
	require.NoError(t, err)

	// Unhandled events commit nothing, so only two label values exist.
	assert.Equal(t, 2, testutil.CollectAndCount(obs.transitions))
	assert.Equal(t, 3.0, testutil.ToFloat64(obs.transitions.WithLabelValues("FLIP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.transitions.WithLabelValues(core.InitEvent)))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.entries.WithLabelValues("on")))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.entries.WithLabelValues("off")))
}

func TestMetricsObserver_Errors(t *testing.T) {
	obs, err := NewMetricsObserver(prometheus.NewRegistry())
	require.NoError(t, err)

	obs.OnError("m", primitives.NewEvent("A", nil), &core.MachineError{Kind: core.KindGuard, Err: errors.New("x")})
	obs.OnError("m", primitives.NewEvent("A", nil), &core.MachineError{Kind: core.KindAction, Err: errors.New("x")})
	obs.OnError("m", primitives.NewEvent("A", nil), &core.InfiniteLoopError{Limit: 1})
	obs.OnError("m", primitives.NewEvent("A", nil), errors.New("boom"))

	for _, kind := range []string{"guard", "action", "loop", "other"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(obs.errors.WithLabelValues(kind)), kind)
	}
}

func TestMetricsObserver_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetricsObserver(reg)
	require.NoError(t, err)
	_, err = NewMetricsObserver(reg)
	assert.Error(t, err)
}
