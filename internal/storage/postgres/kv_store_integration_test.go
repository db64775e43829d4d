package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

func TestKeyValueStore_PostgresUpsertAndGet(t *testing.T) {
	store := openMigratedStoreForIntegrationTest(t)
	kv := NewKeyValueStore(store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := kv.Get(ctx, "minishop_cart_v1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := kv.Set(ctx, "minishop_cart_v1", "[]"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := kv.Set(ctx, "minishop_cart_v1", `[{"id":1,"title":"A","price":1,"quantity":2}]`); err != nil {
		t.Fatalf("second set: %v", err)
	}

	got, err := kv.Get(ctx, "minishop_cart_v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `[{"id":1,"title":"A","price":1,"quantity":2}]` {
		t.Fatalf("unexpected value: %s", got)
	}
	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestStore_PostgresMigrateDownAndUp(t *testing.T) {
	store := openMigratedStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if version < 1 || count < 1 {
		t.Fatalf("expected applied migrations, got version=%d count=%d", version, count)
	}

	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if _, count, err = store.MigrationStatus(ctx); err != nil || count != 0 {
		t.Fatalf("expected no applied migrations, got count=%d err=%v", count, err)
	}

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up again: %v", err)
	}
}
