package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
	"github.com/vladislavdragonenkov/minishop/internal/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/minishop/internal/health"
	"github.com/vladislavdragonenkov/minishop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/minishop/internal/metrics"
	"github.com/vladislavdragonenkov/minishop/internal/service/persistence"
	"github.com/vladislavdragonenkov/minishop/internal/service/theme"
	"github.com/vladislavdragonenkov/minishop/internal/version"
)

// App собирает ядро корзины и его окружение для одного процесса.
type App struct {
	cfg    Config
	logger *log.Entry

	Store   *cart.Store
	Views   *cart.Views
	Bridge  *persistence.Bridge
	Catalog domain.Catalog
	Theme   *theme.Preference
	Metrics *metrics.CartMetrics

	kv            keyValueStore
	producer      *kafka.Producer
	feed          *kafka.ChangeFeed
	unsubscribers []func()
}

// Options задаёт подменяемые зависимости App (используются в тестах).
type Options struct {
	KeyValueStore domain.KeyValueStore
	Catalog       domain.Catalog
	Registerer    prometheus.Registerer
	Publisher     kafka.Publisher
}

// Option настраивает App.
type Option func(*Options)

// WithKeyValueStore подменяет хранилище, выбранное конфигурацией.
func WithKeyValueStore(kv domain.KeyValueStore) Option {
	return func(opts *Options) { opts.KeyValueStore = kv }
}

// WithCatalog подменяет HTTP-клиент каталога.
func WithCatalog(c domain.Catalog) Option {
	return func(opts *Options) { opts.Catalog = c }
}

// WithRegisterer регистрирует метрики в отдельном реестре.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts *Options) { opts.Registerer = reg }
}

// WithPublisher включает ленту изменений с заданным publisher вместо Kafka producer.
func WithPublisher(p kafka.Publisher) Option {
	return func(opts *Options) { opts.Publisher = p }
}

// New проверяет конфигурацию и собирает зависимости. Снимок корзины ещё не загружен: вызовите Start.
func New(ctx context.Context, cfg Config, logger *log.Entry, options ...Option) (*App, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts Options
	for _, option := range options {
		option(&opts)
	}

	a := &App{cfg: cfg, logger: logger}

	if opts.Registerer != nil {
		a.Metrics = metrics.NewCartMetricsWithRegisterer(opts.Registerer)
	} else {
		a.Metrics = metrics.NewCartMetrics()
	}

	if opts.KeyValueStore != nil {
		a.kv = nopCloser{opts.KeyValueStore}
	} else {
		kv, err := openKeyValueStore(ctx, cfg, logger.WithField("component", "storage"))
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
		}
		a.kv = kv
	}

	if opts.Catalog != nil {
		a.Catalog = opts.Catalog
	} else {
		catalogCfg := catalog.DefaultConfig()
		catalogCfg.BaseURL = cfg.CatalogURL
		catalogCfg.Timeout = cfg.CatalogTimeout
		catalogCfg.RPS = cfg.CatalogRPS
		client, err := catalog.NewClient(catalogCfg,
			catalog.WithLogger(logger.WithField("component", "catalog-client")),
			catalog.WithRecorder(a.Metrics),
		)
		if err != nil {
			_ = a.kv.Close()
			return nil, err
		}
		a.Catalog = client
	}

	a.Store = cart.NewStore()
	a.Views = cart.NewViews(a.Store)
	a.unsubscribers = append(a.unsubscribers,
		a.Store.Subscribe(func(change cart.Change) {
			a.Metrics.RecordMutation(string(change.Op))
		}),
		a.Views.Subscribe(func(summary cart.Summary) {
			a.Metrics.SetLedgerTotals(summary.TotalItems, summary.Subtotal)
		}),
	)

	a.Bridge = persistence.NewBridge(a.Store, a.kv,
		persistence.WithLogger(logger.WithField("component", "cart-persistence")),
		persistence.WithRecorder(a.Metrics),
		persistence.WithSaveDebounce(cfg.SaveDebounce),
		persistence.WithLoadTimeout(cfg.LoadTimeout),
	)

	defaultTheme, _ := domain.ParseTheme(cfg.ThemeDefault)
	a.Theme = theme.NewPreference(a.kv,
		theme.WithLogger(logger.WithField("component", "theme-preference")),
		theme.WithDefault(defaultTheme),
		theme.WithLoadTimeout(cfg.LoadTimeout),
	)

	publisher := opts.Publisher
	if publisher == nil {
		if a.producer = initKafkaProducer(cfg, logger); a.producer != nil {
			publisher = a.producer
		}
	}
	if publisher != nil {
		a.feed = kafka.NewChangeFeed(a.Store, publisher,
			kafka.WithFeedLogger(logger.WithField("component", "cart-change-feed")),
			kafka.WithTopic(cfg.KafkaTopic),
		)
	}

	return a, nil
}

// Start загружает сохранённые корзину и тему. Ошибки хранилища не фатальны.
func (a *App) Start(ctx context.Context) persistence.LoadResult {
	result := a.Bridge.Load(ctx)
	a.Theme.Load(ctx)

	summary := a.Views.Summary()
	a.Metrics.SetLedgerTotals(summary.TotalItems, summary.Subtotal)

	a.logger.WithFields(log.Fields{
		"outcome":  result.Outcome,
		"restored": result.Restored,
		"dropped":  result.Dropped,
		"theme":    a.Theme.Current(),
	}).Debug("minishop state loaded")
	return result
}

// Close сохраняет отложенное состояние корзины и освобождает ресурсы.
func (a *App) Close(ctx context.Context) {
	a.Bridge.Flush(ctx)
	a.Bridge.Close()

	for _, unsubscribe := range a.unsubscribers {
		unsubscribe()
	}
	if a.feed != nil {
		a.feed.Close()
	}
	closeKafka(a.producer, a.logger)

	if err := a.kv.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close storage")
	}
}

// HealthHandler возвращает /healthz с проверками хранилища и загрузки корзины.
func (a *App) HealthHandler() *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.Register("storage", healthcheck.NewPingChecker(a.cfg.StorageDriver, a.kv))
	handler.Register("cart", healthcheck.NewFuncChecker("cart", func(context.Context) error {
		if !a.Bridge.Loaded() {
			return errors.New("cart snapshot is not loaded yet")
		}
		return nil
	}))
	if a.feed != nil {
		handler.RegisterOptional("kafka", healthcheck.NewFuncChecker("kafka", func(context.Context) error {
			return a.feed.LastError()
		}))
	}
	return handler
}

// Run запускает интерактивную оболочку до EOF, команды exit или отмены ctx.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer, prompt bool, options ...Option) error {
	logger := log.WithField("component", "app")

	a, err := New(ctx, cfg, logger, options...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	a.Start(ctx)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = startMetricsServer(ctx, cfg.MetricsAddr, logger, a.HealthHandler())
		defer shutdownHTTP(metricsSrv, logger)
	}

	shell := NewShell(a, in, out)
	shell.Prompt = prompt
	return shell.Run(ctx)
}

// startMetricsServer запускает /metrics, /healthz и /livez.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("metrics available at %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

// nopCloser адаптирует внешнее хранилище: App не управляет его жизненным циклом.
type nopCloser struct {
	domain.KeyValueStore
}

func (n nopCloser) Ping(ctx context.Context) error {
	if pinger, ok := n.KeyValueStore.(healthcheck.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (nopCloser) Close() error { return nil }
