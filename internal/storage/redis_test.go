package storage_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aeroprep/examd/internal/storage"
)

func makeGateway(t *testing.T) *storage.RedisGateway {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return storage.NewRedisGateway(rdb)
}

func TestRedisGateway_SetGetDelete(t *testing.T) {
	g := makeGateway(t)
	ctx := context.Background()

	err := g.Set(ctx, "k1", []byte(`{"a":1}`))
	require.NoError(t, err)

	got, err := g.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a":1}`), got)

	require.NoError(t, g.Delete(ctx, "k1"))

	_, err = g.Get(ctx, "k1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedisGateway_GetMissingKey(t *testing.T) {
	g := makeGateway(t)

	_, err := g.Get(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedisGateway_DeleteMissingKeyIsNoop(t *testing.T) {
	g := makeGateway(t)

	require.NoError(t, g.Delete(context.Background(), "nope"))
}

func TestRedisGateway_SetOverwrites(t *testing.T) {
	g := makeGateway(t)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "k", []byte("old")))
	require.NoError(t, g.Set(ctx, "k", []byte("new")))

	got, err := g.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}
