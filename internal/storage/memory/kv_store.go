package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// KeyValueStore — in-memory реализация domain.KeyValueStore.
// Данные живут до завершения процесса; используется в тестах и при MINISHOP_STORAGE_DRIVER=memory.
type KeyValueStore struct {
	mu     sync.RWMutex
	items  map[string]string
	closed bool
}

// NewKeyValueStore создаёт пустое хранилище.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{
		items: make(map[string]string),
	}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", domain.ErrStoreClosed
	}
	value, ok := s.items[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}
	s.items[key] = value
	return nil
}

// Ping сообщает, открыто ли хранилище.
func (s *KeyValueStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

// Close делает хранилище недоступным; повторный вызов безопасен.
func (s *KeyValueStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ domain.KeyValueStore = (*KeyValueStore)(nil)
