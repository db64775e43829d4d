package kafka

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
)

const defaultFeedBuffer = 256

// Publisher отправляет одно событие; реализуется *Producer.
type Publisher interface {
	PublishEvent(topic, key string, event any) error
}

// FeedOptions задаёт параметры ChangeFeed.
type FeedOptions struct {
	Logger    *log.Entry
	Topic     string
	SessionID string
	Buffer    int
}

// FeedOption настраивает ChangeFeed.
type FeedOption func(*FeedOptions)

func WithFeedLogger(logger *log.Entry) FeedOption {
	return func(opts *FeedOptions) { opts.Logger = logger }
}

func WithTopic(topic string) FeedOption {
	return func(opts *FeedOptions) { opts.Topic = topic }
}

func WithSessionID(id string) FeedOption {
	return func(opts *FeedOptions) { opts.SessionID = id }
}

func WithBuffer(size int) FeedOption {
	return func(opts *FeedOptions) { opts.Buffer = size }
}

// ChangeFeed публикует изменения корзины в Kafka в фоне.
// Слушатель корзины только ставит событие в очередь; при переполнении событие
// отбрасывается, мутации корзины никогда не ждут брокер.
type ChangeFeed struct {
	publisher Publisher
	logger    *log.Entry
	topic     string
	sessionID string

	events      chan *CartEvent
	done        chan struct{}
	unsubscribe func()

	mu      sync.Mutex
	closed  bool
	lastErr error
}

// NewChangeFeed подписывается на store и запускает фоновую отправку.
func NewChangeFeed(store *cart.Store, publisher Publisher, options ...FeedOption) *ChangeFeed {
	opts := FeedOptions{
		Topic:  TopicCartEvents,
		Buffer: defaultFeedBuffer,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Topic == "" {
		opts.Topic = TopicCartEvents
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultFeedBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-change-feed")
	}

	f := &ChangeFeed{
		publisher: publisher,
		logger:    logger.WithField("session_id", opts.SessionID),
		topic:     opts.Topic,
		sessionID: opts.SessionID,
		events:    make(chan *CartEvent, opts.Buffer),
		done:      make(chan struct{}),
	}
	go f.run()
	f.unsubscribe = store.Subscribe(f.enqueue)
	return f
}

// SessionID возвращает ключ, с которым публикуются события.
func (f *ChangeFeed) SessionID() string {
	return f.sessionID
}

func (f *ChangeFeed) enqueue(change cart.Change) {
	event, ok := NewCartEvent(f.sessionID, change)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- event:
	default:
		f.logger.WithField("event_type", event.EventType).Warn("cart change feed buffer is full, dropping event")
	}
}

func (f *ChangeFeed) run() {
	defer close(f.done)
	for event := range f.events {
		err := f.publisher.PublishEvent(f.topic, f.sessionID, event)
		if err != nil {
			f.logger.WithError(err).WithFields(log.Fields{
				"event_type": event.EventType,
				"version":    event.Version,
			}).Warn("failed to publish cart event")
		}

		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()
	}
}

// LastError возвращает ошибку последней отправки (nil, если она удалась).
func (f *ChangeFeed) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close отписывается от корзины и дожидается отправки уже поставленных событий.
func (f *ChangeFeed) Close() {
	f.unsubscribe()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.done
		return
	}
	f.closed = true
	close(f.events)
	f.mu.Unlock()

	<-f.done
}
