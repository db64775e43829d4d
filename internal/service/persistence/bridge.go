package persistence

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

const (
	defaultSaveDebounce = 250 * time.Millisecond
	defaultLoadTimeout  = 5 * time.Second
	defaultSaveTimeout  = 5 * time.Second
)

// Исходы загрузки снимка.
const (
	LoadOutcomeRestored  = "restored"
	LoadOutcomeEmpty     = "empty"
	LoadOutcomeMalformed = "malformed"
	LoadOutcomeError     = "error"
)

// Результаты запросов на сохранение.
const (
	SaveResultWritten    = "written"
	SaveResultFailed     = "failed"
	SaveResultDiscarded  = "discarded"
	SaveResultSuperseded = "superseded"
)

// Recorder принимает метрики bridge; реализуется *metrics.CartMetrics.
type Recorder interface {
	RecordSave(result string)
	RecordSaveDuration(duration time.Duration)
	RecordLoad(outcome string, dropped int)
}

// LoadResult описывает итог стартовой загрузки.
type LoadResult struct {
	Outcome  string
	Restored int
	Dropped  int
}

// BridgeOptions задаёт параметры Bridge.
type BridgeOptions struct {
	Logger       *log.Entry
	Recorder     Recorder
	Key          string
	SaveDebounce time.Duration
	LoadTimeout  time.Duration
	SaveTimeout  time.Duration
}

// Option настраивает Bridge.
type Option func(*BridgeOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *BridgeOptions) {
		opts.Logger = logger
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(opts *BridgeOptions) {
		opts.Recorder = recorder
	}
}

// WithKey переопределяет ключ снимка.
func WithKey(key string) Option {
	return func(opts *BridgeOptions) {
		opts.Key = key
	}
}

// WithSaveDebounce задаёт период тишины перед записью.
func WithSaveDebounce(d time.Duration) Option {
	return func(opts *BridgeOptions) {
		opts.SaveDebounce = d
	}
}

// WithLoadTimeout ограничивает время стартового чтения.
func WithLoadTimeout(d time.Duration) Option {
	return func(opts *BridgeOptions) {
		opts.LoadTimeout = d
	}
}

// WithSaveTimeout ограничивает время одной записи.
func WithSaveTimeout(d time.Duration) Option {
	return func(opts *BridgeOptions) {
		opts.SaveTimeout = d
	}
}

// Bridge синхронизирует корзину с key-value хранилищем: один раз загружает
// снимок при старте и затем сохраняет изменения с debounce.
// Ошибки хранилища логируются и никогда не выходят за пределы Bridge.
type Bridge struct {
	store        *cart.Store
	kv           domain.KeyValueStore
	logger       *log.Entry
	recorder     Recorder
	key          string
	saveDebounce time.Duration
	loadTimeout  time.Duration
	saveTimeout  time.Duration

	unsubscribe func()
	loadOnce    sync.Once
	writes      sync.WaitGroup

	mu         sync.Mutex
	loaded     bool
	closed     bool
	timer      *time.Timer
	generation uint64
	pending    *cart.Snapshot
}

// NewBridge создаёт bridge и сразу подписывает его на изменения корзины.
// До завершения Load все изменения отбрасываются.
func NewBridge(store *cart.Store, kv domain.KeyValueStore, options ...Option) *Bridge {
	opts := BridgeOptions{
		Key:          CartKey,
		SaveDebounce: defaultSaveDebounce,
		LoadTimeout:  defaultLoadTimeout,
		SaveTimeout:  defaultSaveTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-persistence")
	}
	if opts.Key == "" {
		opts.Key = CartKey
	}
	if opts.SaveDebounce < 0 {
		opts.SaveDebounce = 0
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}

	b := &Bridge{
		store:        store,
		kv:           kv,
		logger:       logger,
		recorder:     opts.Recorder,
		key:          opts.Key,
		saveDebounce: opts.SaveDebounce,
		loadTimeout:  opts.LoadTimeout,
		saveTimeout:  opts.SaveTimeout,
	}
	b.unsubscribe = store.Subscribe(b.onChange)
	return b
}

// Load читает и валидирует сохранённый снимок, гидрирует корзину и открывает
// сохранение. Выполняется не более одного раза; повторные вызовы возвращают пустой результат.
func (b *Bridge) Load(ctx context.Context) LoadResult {
	var result LoadResult
	b.loadOnce.Do(func() {
		result = b.load(ctx)

		b.mu.Lock()
		b.loaded = true
		b.mu.Unlock()
	})
	return result
}

// Loaded сообщает, завершилась ли стартовая загрузка.
func (b *Bridge) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func (b *Bridge) load(ctx context.Context) LoadResult {
	loadCtx, cancel := context.WithTimeout(ctx, b.loadTimeout)
	defer cancel()

	raw, err := b.kv.Get(loadCtx, b.key)
	if err != nil {
		if domain.IsKeyNotFound(err) {
			b.recordLoad(LoadOutcomeEmpty, 0)
			return LoadResult{Outcome: LoadOutcomeEmpty}
		}
		b.logger.WithError(err).WithField("key", b.key).Warn("failed to read cart snapshot, starting with empty cart")
		b.recordLoad(LoadOutcomeError, 0)
		return LoadResult{Outcome: LoadOutcomeError}
	}

	decoded := DecodeSnapshot(raw)
	b.store.Hydrate(decoded.Items)

	outcome := LoadOutcomeRestored
	if decoded.Malformed {
		outcome = LoadOutcomeMalformed
		b.logger.WithField("key", b.key).Warn("cart snapshot is malformed, starting with empty cart")
	}
	if decoded.Dropped > 0 {
		b.logger.WithFields(log.Fields{
			"key":     b.key,
			"dropped": decoded.Dropped,
		}).Warn("dropped invalid cart snapshot entries")
	}
	b.recordLoad(outcome, decoded.Dropped)

	b.logger.WithFields(log.Fields{
		"restored": len(decoded.Items),
		"outcome":  outcome,
	}).Debug("cart snapshot loaded")

	return LoadResult{Outcome: outcome, Restored: len(decoded.Items), Dropped: decoded.Dropped}
}

// onChange перезапускает таймер debounce на каждое изменение корзины.
func (b *Bridge) onChange(change cart.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded || b.closed {
		b.recordSave(SaveResultDiscarded)
		return
	}

	if b.timer != nil {
		b.timer.Stop()
		b.recordSave(SaveResultSuperseded)
	}
	b.generation++
	gen := b.generation
	snap := change.Snapshot
	b.pending = &snap
	b.timer = time.AfterFunc(b.saveDebounce, func() { b.fire(gen) })
}

// fire выполняет запись, если таймер gen всё ещё актуален.
func (b *Bridge) fire(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.generation || b.pending == nil {
		b.mu.Unlock()
		return
	}
	snap := *b.pending
	b.pending = nil
	b.timer = nil
	b.writes.Add(1)
	b.mu.Unlock()

	defer b.writes.Done()
	b.write(context.Background(), snap)
}

// Flush немедленно записывает отложенное состояние, если запись ожидается.
func (b *Bridge) Flush(ctx context.Context) {
	b.mu.Lock()
	if b.closed || b.pending == nil {
		b.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.generation++
	snap := *b.pending
	b.pending = nil
	b.writes.Add(1)
	b.mu.Unlock()

	defer b.writes.Done()
	b.write(ctx, snap)
}

// Close отменяет отложенную запись, отписывается от корзины и дожидается
// уже начатой записи. Отложенное, но не начатое сохранение теряется.
func (b *Bridge) Close() {
	b.unsubscribe()

	b.mu.Lock()
	if !b.closed {
		b.closed = true
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
		b.pending = nil
	}
	b.mu.Unlock()

	b.writes.Wait()
}

func (b *Bridge) write(ctx context.Context, snap cart.Snapshot) {
	raw, err := EncodeSnapshot(snap.Items)
	if err != nil {
		b.logger.WithError(err).Warn("failed to encode cart snapshot")
		b.recordSave(SaveResultFailed)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, b.saveTimeout)
	defer cancel()

	start := time.Now()
	if err := b.kv.Set(writeCtx, b.key, raw); err != nil {
		b.logger.WithError(err).WithFields(log.Fields{
			"key":     b.key,
			"version": snap.Version,
		}).Warn("failed to persist cart snapshot")
		b.recordSave(SaveResultFailed)
		return
	}
	if b.recorder != nil {
		b.recorder.RecordSaveDuration(time.Since(start))
	}
	b.recordSave(SaveResultWritten)

	b.logger.WithFields(log.Fields{
		"version": snap.Version,
		"items":   len(snap.Items),
	}).Debug("cart snapshot persisted")
}

func (b *Bridge) recordSave(result string) {
	if b.recorder != nil {
		b.recorder.RecordSave(result)
	}
}

func (b *Bridge) recordLoad(outcome string, dropped int) {
	if b.recorder != nil {
		b.recorder.RecordLoad(outcome, dropped)
	}
}
