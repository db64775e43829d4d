package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/storage/memory"
)

func TestKeyValueStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKeyValueStore()

	if err := store.Set(ctx, "minishop_cart_v1", "[]"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "minishop_cart_v1", `[{"id":1}]`); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}

	got, err := store.Get(ctx, "minishop_cart_v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `[{"id":1}]` {
		t.Fatalf("expected overwritten value, got %s", got)
	}
}

func TestKeyValueStore_MissingKey(t *testing.T) {
	store := memory.NewKeyValueStore()

	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "  "); !errors.Is(err, domain.ErrKeyRequired) {
		t.Fatalf("expected ErrKeyRequired, got %v", err)
	}
}

func TestKeyValueStore_CanceledContext(t *testing.T) {
	store := memory.NewKeyValueStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestKeyValueStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKeyValueStore()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Set(ctx, "k", "v"); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed on Set, got %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed on Get, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed on Ping, got %v", err)
	}
}
