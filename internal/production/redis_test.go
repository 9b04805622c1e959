package production

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartkit/internal/core"
)

func newTestRedis(t *testing.T, opts ...RedisOption) (*RedisPersister, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	p := NewRedisPersisterFromClient(client, opts...)
	t.Cleanup(func() { _ = p.Close() })
	return p, mr
}

func TestRedisPersister_RoundTrip(t *testing.T) {
	p, mr := newTestRedis(t)
	ctx := context.Background()

	snap := sampleSnapshot()
	require.NoError(t, p.Save(ctx, snap))
	assert.True(t, mr.Exists("chartkit:machine:m-1"))

	loaded, err := p.Load(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Configuration, loaded.Configuration)
	assert.Equal(t, snap.History, loaded.History)
	assert.EqualValues(t, 42, loaded.Context["counter"])

	ids, err := p.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, ids)

	require.NoError(t, p.Delete(ctx, "m-1"))
	_, err = p.Load(ctx, "m-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	ids, err = p.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisPersister_Prefix(t *testing.T) {
	p, mr := newTestRedis(t, WithPrefix("app:"))
	require.NoError(t, p.Save(context.Background(), sampleSnapshot()))
	assert.True(t, mr.Exists("app:m-1"))
	assert.False(t, mr.Exists("chartkit:machine:m-1"))
}

func TestRedisPersister_TTL(t *testing.T) {
	p, mr := newTestRedis(t, WithTTL(time.Second))
	ctx := context.Background()
	require.NoError(t, p.Save(ctx, sampleSnapshot()))
	assert.Equal(t, time.Second, mr.TTL("chartkit:machine:m-1"))

	mr.FastForward(2 * time.Second)
	_, err := p.Load(ctx, "m-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
