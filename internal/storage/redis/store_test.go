package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(client, DefaultPrefix)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStore_SetStoresUnderPrefixWithoutTTL(t *testing.T) {
	store, mr := setupTestStore(t)

	require.NoError(t, store.Set(context.Background(), "minishop_cart_v1", "[]"))

	got, err := mr.Get("minishop:minishop_cart_v1")
	require.NoError(t, err)
	require.Equal(t, "[]", got)
	require.Zero(t, mr.TTL("minishop:minishop_cart_v1"))
}

func TestStore_GetMissingKey(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Get(context.Background(), "minishop_theme_v1")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStore_GetReadsExistingValue(t *testing.T) {
	store, mr := setupTestStore(t)
	require.NoError(t, mr.Set("minishop:minishop_theme_v1", "dark"))

	got, err := store.Get(context.Background(), "minishop_theme_v1")
	require.NoError(t, err)
	require.Equal(t, "dark", got)
}

func TestStore_ServerErrorIsWrapped(t *testing.T) {
	store, mr := setupTestStore(t)
	mr.SetError("LOADING server is loading")

	_, err := store.Get(context.Background(), "minishop_cart_v1")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrKeyNotFound)

	mr.SetError("")
	require.NoError(t, store.Ping(context.Background()))
}

func TestOpen_ParsesURL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Open(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	require.True(t, mr.Exists("minishop:k"))
}

func TestOpen_RejectsInvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "http://not-redis")
	require.Error(t, err)
}
