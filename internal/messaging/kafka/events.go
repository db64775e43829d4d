package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
)

// EventType определяет тип события корзины
type EventType string

const (
	EventTypeItemAdded         EventType = "cart.item_added"
	EventTypeQuantityIncreased EventType = "cart.quantity_increased"
	EventTypeQuantityDecreased EventType = "cart.quantity_decreased"
	EventTypeItemRemoved       EventType = "cart.item_removed"
	EventTypeHydrated          EventType = "cart.hydrated"
)

// TopicCartEvents — топик по умолчанию для ленты изменений корзины.
const TopicCartEvents = "minishop.cart.events"

// CartEvent — сообщение ленты изменений. Ключ сообщения — SessionID,
// поэтому события одной сессии попадают в одну партицию и сохраняют порядок.
type CartEvent struct {
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	SessionID  string    `json:"session_id"`
	ProductID  int64     `json:"product_id,omitempty"`
	Quantity   int       `json:"quantity"`
	Version    uint64    `json:"version"`
	TotalItems int       `json:"total_items"`
	Subtotal   float64   `json:"subtotal"`
	Timestamp  time.Time `json:"timestamp"`
}

// eventTypeFor сопоставляет операцию корзины с типом события.
func eventTypeFor(op cart.Operation) (EventType, bool) {
	switch op {
	case cart.OpAdd:
		return EventTypeItemAdded, true
	case cart.OpIncrease:
		return EventTypeQuantityIncreased, true
	case cart.OpDecrease:
		return EventTypeQuantityDecreased, true
	case cart.OpRemove:
		return EventTypeItemRemoved, true
	case cart.OpHydrate:
		return EventTypeHydrated, true
	default:
		return "", false
	}
}

// NewCartEvent строит событие из изменения корзины. Quantity — количество
// затронутой позиции после изменения (0, если позиция удалена).
func NewCartEvent(sessionID string, change cart.Change) (*CartEvent, bool) {
	eventType, ok := eventTypeFor(change.Op)
	if !ok {
		return nil, false
	}

	items := change.Snapshot.Items
	event := &CartEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		SessionID:  sessionID,
		ProductID:  change.ProductID,
		Version:    change.Snapshot.Version,
		TotalItems: cart.TotalItems(items),
		Subtotal:   cart.Subtotal(items),
		Timestamp:  time.Now().UTC(),
	}
	for _, item := range items {
		if item.ID == change.ProductID {
			event.Quantity = item.Quantity
			break
		}
	}
	return event, true
}
