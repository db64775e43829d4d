package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/minishop/internal/storage/badger"
	"github.com/vladislavdragonenkov/minishop/internal/storage/memory"
	"github.com/vladislavdragonenkov/minishop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/minishop/internal/storage/redis"
)

// keyValueStore — долговременное хранилище вместе с управлением его жизненным циклом.
type keyValueStore interface {
	domain.KeyValueStore
	Ping(ctx context.Context) error
	Close() error
}

// openKeyValueStore открывает хранилище, выбранное StorageDriver.
func openKeyValueStore(ctx context.Context, cfg Config, logger *log.Entry) (keyValueStore, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Warn("memory storage selected, cart and theme will not survive restart")
		return memory.NewKeyValueStore(), nil

	case StorageDriverBadger:
		badgerCfg := badger.DefaultConfig(cfg.BadgerPath)
		badgerCfg.Logger = logger.WithField("storage", "badger")
		store, err := badger.Open(badgerCfg)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.BadgerPath).Info("badger storage opened")
		return store, nil

	case StorageDriverRedis:
		store, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("redis storage connected")
		return store, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("postgres storage connected")
		return postgres.NewKeyValueStore(store), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initKafkaProducer создаёт producer, если заданы брокеры.
// Ошибка подключения не фатальна: корзина работает без ленты изменений.
func initKafkaProducer(cfg Config, logger *log.Entry) *kafka.Producer {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without cart change feed")
		return nil
	}
	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Debug("kafka producer closed")
}
