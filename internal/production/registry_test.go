package production

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

func TestMemoryRegistry(t *testing.T) {
	r := NewMemoryRegistry(0)
	ctx := context.Background()

	_, err := r.Latest(ctx, "m")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Error(t, r.Register(ctx, core.MachineSnapshot{}))

	for _, s := range []core.MachineSnapshot{
		{MachineID: "m", Version: "v1", Configuration: []string{"a"}},
		{MachineID: "m", Version: "v1", Configuration: []string{"b"}},
		{MachineID: "m", Version: "v2", Configuration: []string{"c"}},
		{MachineID: "n", Version: "v1", Configuration: []string{"x"}},
	} {
		require.NoError(t, r.Register(ctx, s))
	}

	latest, err := r.Latest(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, latest.Configuration)

	v1, err := r.Version(ctx, "m", "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, v1.Configuration)

	_, err = r.Version(ctx, "m", "v3")
	assert.ErrorIs(t, err, core.ErrNotFound)

	versions, err := r.ListVersions(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v1"}, versions)

	machines, err := r.ListMachines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m", "n"}, machines)
}

func TestMemoryRegistry_Limit(t *testing.T) {
	r := NewMemoryRegistry(2)
	ctx := context.Background()
	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, r.Register(ctx, core.MachineSnapshot{MachineID: "m", Version: v}))
	}
	versions, err := r.ListVersions(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"v3", "v2"}, versions)
}

func TestMemoryRegistry_WithMachine(t *testing.T) {
	r := NewMemoryRegistry(0)
	def, err := core.NewDefinition(lightConfig())
	require.NoError(t, err)
	m := core.NewMachine(def, core.WithRegistry(r))
	_, err = m.Start(context.Background())
	require.NoError(t, err)
	_, err = m.Send(context.Background(), primitives.NewEvent("FLIP", nil))
	require.NoError(t, err)

	latest, err := r.Latest(context.Background(), m.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, latest.Configuration)
	assert.Equal(t, def.Version(), latest.Version)

	versions, err := r.ListVersions(context.Background(), m.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{def.Version()}, versions)
}
