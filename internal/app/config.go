package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/minishop/internal/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/messaging/kafka"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverBadger   = "badger"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска minishop.
type Config struct {
	StorageDriver       string `validate:"required,oneof=memory badger redis postgres"`
	BadgerPath          string `validate:"required_if=StorageDriver badger"`
	RedisURL            string `validate:"required_if=StorageDriver redis"`
	PostgresDSN         string `validate:"required_if=StorageDriver postgres"`
	PostgresAutoMigrate bool

	CatalogURL     string        `validate:"required,url"`
	CatalogTimeout time.Duration `validate:"gt=0"`
	CatalogRPS     float64       `validate:"gte=0"`

	SaveDebounce time.Duration `validate:"gte=0"`
	LoadTimeout  time.Duration `validate:"gt=0"`
	ThemeDefault string        `validate:"oneof=light dark"`

	// MetricsAddr — адрес /metrics и /healthz для shell; пустая строка отключает сервер.
	MetricsAddr string

	// KafkaBrokers — список брокеров через запятую; пустой отключает ленту изменений.
	KafkaBrokers string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`
}

// DefaultConfig возвращает настройки по умолчанию: Badger в домашнем каталоге и публичный DummyJSON.
func DefaultConfig() Config {
	return Config{
		StorageDriver:       StorageDriverBadger,
		BadgerPath:          defaultBadgerPath(),
		PostgresAutoMigrate: true,
		CatalogURL:          catalog.DefaultBaseURL,
		CatalogTimeout:      10 * time.Second,
		CatalogRPS:          5,
		SaveDebounce:        250 * time.Millisecond,
		LoadTimeout:         5 * time.Second,
		ThemeDefault:        "light",
		MetricsAddr:         "",
		KafkaTopic:          kafka.TopicCartEvents,
	}
}

func defaultBadgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".minishop", "data")
	}
	return filepath.Join(home, ".minishop", "data")
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			messages := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				messages = append(messages, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Brokers разбирает KafkaBrokers.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
