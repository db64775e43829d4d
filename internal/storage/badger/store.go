package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// Config задаёт параметры локального хранилища.
type Config struct {
	// Path — каталог базы; обязателен, если InMemory=false.
	Path string
	// InMemory открывает базу без диска (тесты).
	InMemory bool
	// SyncWrites делает fsync на каждую запись.
	SyncWrites bool
	// GCInterval — период сборки мусора value log; 0 отключает.
	GCInterval     time.Duration
	GCDiscardRatio float64
	Logger         *log.Entry
}

// DefaultConfig возвращает конфигурацию для каталога path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig возвращает конфигурацию без диска.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store — реализация domain.KeyValueStore поверх BadgerDB.
type Store struct {
	db     *badger.DB
	logger *log.Entry

	stopGC   chan struct{}
	gcDone   chan struct{}
	closeMux sync.Mutex
	closed   bool
}

// Open открывает (или создаёт) базу.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("badger path is required for persistent storage")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "badger-store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{entry: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, ratio)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.db.IsClosed() {
		return "", domain.ErrStoreClosed
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badger get %s: %w", key, err)
	}
	return string(value), nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return domain.ErrStoreClosed
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	}); err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

// Ping проверяет, что база открыта.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return domain.ErrStoreClosed
	}
	return nil
}

// Close останавливает GC и закрывает базу. Повторный вызов безопасен.
func (s *Store) Close() error {
	s.closeMux.Lock()
	defer s.closeMux.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	return nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.WithError(err).Warn("badger value log GC failed")
			}
		}
	}
}

// badgerLogger понижает уровень info-сообщений Badger до debug.
type badgerLogger struct {
	entry *log.Entry
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.entry.Warnf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.entry.Debugf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.entry.Tracef(strings.TrimSpace(format), args...)
}

var _ domain.KeyValueStore = (*Store)(nil)
