package theme

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// Key — ключ сохранённой цветовой схемы.
const Key = "minishop_theme_v1"

const (
	defaultLoadTimeout = 5 * time.Second
	defaultSaveTimeout = 5 * time.Second
)

// PreferenceOptions задаёт параметры Preference.
type PreferenceOptions struct {
	Logger      *log.Entry
	Default     domain.Theme
	LoadTimeout time.Duration
	SaveTimeout time.Duration
}

// Option настраивает Preference.
type Option func(*PreferenceOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *PreferenceOptions) {
		opts.Logger = logger
	}
}

// WithDefault задаёт схему, действующую до загрузки сохранённого значения.
func WithDefault(t domain.Theme) Option {
	return func(opts *PreferenceOptions) {
		opts.Default = t
	}
}

// WithLoadTimeout ограничивает время чтения сохранённой схемы.
func WithLoadTimeout(d time.Duration) Option {
	return func(opts *PreferenceOptions) {
		opts.LoadTimeout = d
	}
}

// WithSaveTimeout ограничивает время записи.
func WithSaveTimeout(d time.Duration) Option {
	return func(opts *PreferenceOptions) {
		opts.SaveTimeout = d
	}
}

// Preference хранит выбранную цветовую схему.
type Preference struct {
	kv          domain.KeyValueStore
	logger      *log.Entry
	loadTimeout time.Duration
	saveTimeout time.Duration

	mu      sync.RWMutex
	current domain.Theme
}

// NewPreference создаёт preference со схемой по умолчанию (light, если не задана).
func NewPreference(kv domain.KeyValueStore, options ...Option) *Preference {
	opts := PreferenceOptions{
		Default:     domain.ThemeLight,
		LoadTimeout: defaultLoadTimeout,
		SaveTimeout: defaultSaveTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "theme-preference")
	}
	current, ok := domain.ParseTheme(string(opts.Default))
	if !ok {
		current = domain.ThemeLight
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}

	return &Preference{
		kv:          kv,
		logger:      logger,
		loadTimeout: opts.LoadTimeout,
		saveTimeout: opts.SaveTimeout,
		current:     current,
	}
}

// Load применяет сохранённую схему. Отсутствующее или неизвестное значение игнорируется.
func (p *Preference) Load(ctx context.Context) domain.Theme {
	loadCtx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()

	raw, err := p.kv.Get(loadCtx, Key)
	if err != nil {
		if !domain.IsKeyNotFound(err) {
			p.logger.WithError(err).Warn("failed to read theme preference")
		}
		return p.Current()
	}

	saved, ok := domain.ParseTheme(raw)
	if !ok {
		p.logger.WithField("value", raw).Debug("ignoring unknown theme preference")
		return p.Current()
	}

	p.mu.Lock()
	p.current = saved
	p.mu.Unlock()
	return saved
}

// Current возвращает действующую схему.
func (p *Preference) Current() domain.Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Toggle переключает схему и сразу сохраняет её. Ошибка записи только логируется.
func (p *Preference) Toggle(ctx context.Context) domain.Theme {
	p.mu.Lock()
	next := p.current.Toggled()
	p.current = next
	p.mu.Unlock()

	p.save(ctx, next)
	return next
}

// Set устанавливает схему явно и сохраняет её.
func (p *Preference) Set(ctx context.Context, t domain.Theme) {
	p.mu.Lock()
	p.current = t
	p.mu.Unlock()

	p.save(ctx, t)
}

func (p *Preference) save(ctx context.Context, t domain.Theme) {
	saveCtx, cancel := context.WithTimeout(ctx, p.saveTimeout)
	defer cancel()

	if err := p.kv.Set(saveCtx, Key, string(t)); err != nil {
		p.logger.WithError(err).WithField("theme", t).Warn("failed to persist theme preference")
	}
}
