package kafka

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []*CartEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(*CartEvent))
	return p.err
}

func quietEntry() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func TestChangeFeed_PublishesChangesInOrder(t *testing.T) {
	store := cart.NewStore()
	publisher := &recordingPublisher{}
	feed := NewChangeFeed(store, publisher, WithFeedLogger(quietEntry()), WithSessionID("session-1"))

	store.Hydrate(nil)
	store.AddToCart(domain.Product{ID: 1, Title: "A", Price: 10})
	store.AddToCart(domain.Product{ID: 1, Title: "A", Price: 10})
	store.IncreaseQuantity(1)
	store.DecreaseQuantity(1)
	store.RemoveItem(1)
	store.RemoveItem(1) // no-op: события нет
	feed.Close()

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	types := make([]EventType, 0, len(publisher.events))
	for _, event := range publisher.events {
		types = append(types, event.EventType)
	}
	require.Equal(t, []EventType{
		EventTypeHydrated,
		EventTypeItemAdded,
		EventTypeItemAdded,
		EventTypeQuantityIncreased,
		EventTypeQuantityDecreased,
		EventTypeItemRemoved,
	}, types)

	for i, event := range publisher.events {
		require.Equal(t, "session-1", publisher.keys[i])
		require.Equal(t, uint64(i+1), event.Version)
		require.NotEmpty(t, event.EventID)
	}
	require.Equal(t, 3, publisher.events[3].Quantity)
	require.Equal(t, 30.0, publisher.events[3].Subtotal)
	require.Zero(t, publisher.events[5].Quantity)
	require.Zero(t, publisher.events[5].TotalItems)
}

func TestChangeFeed_PublishErrorsDoNotStopFeed(t *testing.T) {
	store := cart.NewStore()
	publisher := &recordingPublisher{err: errors.New("broker down")}
	feed := NewChangeFeed(store, publisher, WithFeedLogger(quietEntry()))

	store.AddToCart(domain.Product{ID: 1, Price: 1})
	store.AddToCart(domain.Product{ID: 2, Price: 1})
	feed.Close()

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Len(t, publisher.events, 2)
	require.NotEmpty(t, feed.SessionID())
	require.EqualError(t, feed.LastError(), "broker down")
}

func TestChangeFeed_ChangesAfterCloseAreIgnored(t *testing.T) {
	store := cart.NewStore()
	publisher := &recordingPublisher{}
	feed := NewChangeFeed(store, publisher, WithFeedLogger(quietEntry()))

	feed.Close()
	feed.Close()
	store.AddToCart(domain.Product{ID: 1, Price: 1})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Empty(t, publisher.events)
}

func TestChangeFeed_WithSaramaProducer(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	store := cart.NewStore()
	feed := NewChangeFeed(store, newProducer(mockProducer, quietEntry()), WithFeedLogger(quietEntry()))

	store.AddToCart(domain.Product{ID: 5, Title: "Lamp", Price: 12.5})
	feed.Close()

	require.NoError(t, mockProducer.Close())
}

func TestNewCartEvent_UnknownOperation(t *testing.T) {
	_, ok := NewCartEvent("s", cart.Change{Op: cart.Operation("rename")})
	require.False(t, ok)
}
