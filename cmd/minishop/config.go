package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/app"
)

const (
	envStorageDriver       = "MINISHOP_STORAGE_DRIVER"
	envBadgerPath          = "MINISHOP_BADGER_PATH"
	envRedisURL            = "MINISHOP_REDIS_URL"
	envPostgresDSN         = "MINISHOP_POSTGRES_DSN"
	envPostgresAutoMigrate = "MINISHOP_POSTGRES_AUTO_MIGRATE"
	envCatalogURL          = "MINISHOP_CATALOG_URL"
	envCatalogTimeout      = "MINISHOP_CATALOG_TIMEOUT"
	envCatalogRPS          = "MINISHOP_CATALOG_RPS"
	envSaveDebounce        = "MINISHOP_SAVE_DEBOUNCE"
	envLoadTimeout         = "MINISHOP_LOAD_TIMEOUT"
	envThemeDefault        = "MINISHOP_THEME_DEFAULT"
	envMetricsAddr         = "MINISHOP_METRICS_ADDR"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envKafkaTopic          = "MINISHOP_KAFKA_TOPIC"
	envLogLevel            = "MINISHOP_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := lookupTrimmed(lookup, envBadgerPath); ok {
		cfg.BadgerPath = v
	}
	if v, ok := lookupTrimmed(lookup, envRedisURL); ok {
		cfg.RedisURL = v
	}
	if v, ok := lookupTrimmed(lookup, envPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	if v, ok := lookupTrimmed(lookup, envCatalogURL); ok {
		cfg.CatalogURL = v
	}
	if v, ok := lookupTrimmed(lookup, envCatalogTimeout); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envCatalogTimeout, err))
		} else {
			cfg.CatalogTimeout = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envCatalogRPS); ok {
		parsed, err := parseFloat(v, func(f float64) bool { return f >= 0 }, "must be >= 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envCatalogRPS, err))
		} else {
			cfg.CatalogRPS = parsed
		}
	}

	if v, ok := lookupTrimmed(lookup, envSaveDebounce); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envSaveDebounce, err))
		} else {
			cfg.SaveDebounce = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envLoadTimeout); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envLoadTimeout, err))
		} else {
			cfg.LoadTimeout = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envThemeDefault); ok {
		switch theme := strings.ToLower(v); theme {
		case "light", "dark":
			cfg.ThemeDefault = theme
		default:
			warnings = append(warnings, fmt.Sprintf("%s: unknown theme %q", envThemeDefault, v))
		}
	}

	if v, ok := lookupTrimmed(lookup, envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = v
	}
	if v, ok := lookupTrimmed(lookup, envKafkaTopic); ok {
		cfg.KafkaTopic = v
	}

	return cfg, warnings
}

// readLogLevel возвращает уровень логирования; по умолчанию CLI пишет только предупреждения.
func readLogLevel(lookup envLookup) (log.Level, error) {
	v, ok := lookupTrimmed(lookup, envLogLevel)
	if !ok {
		return log.WarnLevel, nil
	}
	level, err := log.ParseLevel(v)
	if err != nil {
		return log.WarnLevel, fmt.Errorf("%s: %w", envLogLevel, err)
	}
	return level, nil
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseFloat(raw string, valid func(float64) bool, msg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value %q", raw)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%g %s", v, msg)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, msg string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", raw)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s %s", v, msg)
	}
	return v, nil
}
