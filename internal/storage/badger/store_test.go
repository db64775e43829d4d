package badger

import (
	"context"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

func quietEntry() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func TestStore_InMemorySetGet(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.Logger = quietEntry()
	store, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, err = store.Get(ctx, "minishop_cart_v1")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "minishop_cart_v1", "[]"))
	got, err := store.Get(ctx, "minishop_cart_v1")
	require.NoError(t, err)
	require.Equal(t, "[]", got)
	require.NoError(t, store.Ping(ctx))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0
	cfg.Logger = quietEntry()

	store, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "minishop_theme_v1", "dark"))
	require.NoError(t, store.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "minishop_theme_v1")
	require.NoError(t, err)
	require.Equal(t, "dark", got)
}

func TestStore_ClosedStoreRejectsOperations(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.Logger = quietEntry()
	store, err := Open(cfg)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	require.ErrorIs(t, store.Set(ctx, "k", "v"), domain.ErrStoreClosed)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, domain.ErrStoreClosed)
	require.ErrorIs(t, store.Ping(ctx), domain.ErrStoreClosed)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestStore_EmptyKey(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.Logger = quietEntry()
	store, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.ErrorIs(t, store.Set(context.Background(), " ", "v"), domain.ErrKeyRequired)
}
