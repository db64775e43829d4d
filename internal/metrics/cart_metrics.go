package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics содержит метрики корзины, синхронизации снимков и каталога.
type CartMetrics struct {
	// Мутации корзины по операциям
	mutations *prometheus.CounterVec

	// Текущее состояние корзины
	ledgerItems    prometheus.Gauge
	ledgerSubtotal prometheus.Gauge

	// Persistence bridge
	snapshotSaves   *prometheus.CounterVec
	snapshotLoads   *prometheus.CounterVec
	snapshotDropped prometheus.Counter
	saveDuration    prometheus.Histogram

	// Каталог
	catalogRequests *prometheus.HistogramVec
}

// NewCartMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer регистрирует метрики в заданном registerer.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "minishop_cart_mutations_total",
			Help: "Total number of applied cart mutations grouped by operation.",
		}, []string{"op"}),
		ledgerItems: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "minishop_cart_items",
			Help: "Current total quantity of items in the cart.",
		}),
		ledgerSubtotal: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "minishop_cart_subtotal",
			Help: "Current cart subtotal in catalog currency.",
		}),
		snapshotSaves: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "minishop_snapshot_saves_total",
			Help: "Cart snapshot save requests grouped by result (written, failed, discarded, superseded).",
		}, []string{"result"}),
		snapshotLoads: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "minishop_snapshot_loads_total",
			Help: "Cart snapshot loads grouped by outcome.",
		}, []string{"outcome"}),
		snapshotDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "minishop_snapshot_dropped_entries_total",
			Help: "Total number of persisted cart entries dropped by validation.",
		}),
		saveDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "minishop_snapshot_save_duration_seconds",
			Help:    "Duration of cart snapshot writes in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		catalogRequests: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "minishop_catalog_request_duration_seconds",
			Help:    "Duration of catalog HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordMutation увеличивает счётчик мутаций для операции op.
func (m *CartMetrics) RecordMutation(op string) {
	m.mutations.WithLabelValues(op).Inc()
}

// SetLedgerTotals выставляет текущие итоги корзины.
func (m *CartMetrics) SetLedgerTotals(totalItems int, subtotal float64) {
	m.ledgerItems.Set(float64(totalItems))
	m.ledgerSubtotal.Set(subtotal)
}

// RecordSave увеличивает счётчик сохранений снимка с результатом result.
func (m *CartMetrics) RecordSave(result string) {
	m.snapshotSaves.WithLabelValues(result).Inc()
}

// RecordSaveDuration записывает время записи снимка.
func (m *CartMetrics) RecordSaveDuration(duration time.Duration) {
	m.saveDuration.Observe(duration.Seconds())
}

// RecordLoad фиксирует исход загрузки и число отброшенных записей.
func (m *CartMetrics) RecordLoad(outcome string, dropped int) {
	m.snapshotLoads.WithLabelValues(outcome).Inc()
	if dropped > 0 {
		m.snapshotDropped.Add(float64(dropped))
	}
}

// RecordCatalogRequest записывает длительность запроса к каталогу.
func (m *CartMetrics) RecordCatalogRequest(op, result string, duration time.Duration) {
	m.catalogRequests.WithLabelValues(op, result).Observe(duration.Seconds())
}
