package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// KeyValueStore — реализация domain.KeyValueStore на таблице kv_store.
type KeyValueStore struct {
	store *Store
}

// NewKeyValueStore создаёт хранилище поверх открытого Store. Схема должна быть применена.
func NewKeyValueStore(store *Store) *KeyValueStore {
	return &KeyValueStore{store: store}
}

func (r *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrKeyRequired
	}

	var value string
	err := r.store.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return "", domain.ErrStoreClosed
	}
	if err != nil {
		return "", fmt.Errorf("select kv %s: %w", key, err)
	}
	return value, nil
}

func (r *KeyValueStore) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("upsert kv %s: %w", key, err)
	}
	return nil
}

// Ping проверяет подключение.
func (r *KeyValueStore) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Close закрывает подключение.
func (r *KeyValueStore) Close() error {
	return r.store.Close()
}

var _ domain.KeyValueStore = (*KeyValueStore)(nil)
