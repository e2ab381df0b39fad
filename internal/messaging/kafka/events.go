package kafka

import (
	"strconv"
	"time"
)

// EventType определяет тип события
type EventType string

const (
	// События попытки оформления
	EventTypeCheckoutStarted    EventType = "checkout.started"
	EventTypeCheckoutRedirected EventType = "checkout.redirected"
	EventTypeCheckoutFailed     EventType = "checkout.failed"

	// События заказа и оплаты
	EventTypeOrderPlaced           EventType = "order.placed"
	EventTypePaymentSessionCreated EventType = "payment_session.created"
	EventTypeOrderConfirmed        EventType = "order.confirmed"
)

// TopicCheckoutEvents — топик событий оформления заказа.
const TopicCheckoutEvents = "storefront.checkout.events"

// CheckoutEvent представляет событие попытки оформления заказа
type CheckoutEvent struct {
	EventType EventType              `json:"event_type"`
	AttemptID string                 `json:"attempt_id,omitempty"`
	OrderID   int64                  `json:"order_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Step      string                 `json:"step,omitempty"`
	Kind      string                 `json:"kind,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent создает новое событие оформления
func NewCheckoutEvent(eventType EventType, attemptID string, orderID int64, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType: eventType,
		AttemptID: attemptID,
		OrderID:   orderID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// Key возвращает ключ партиционирования: все события одной попытки попадают в одну партицию.
// Событие без попытки партиционируется по номеру заказа.
func (e *CheckoutEvent) Key() string {
	if e.AttemptID != "" {
		return e.AttemptID
	}
	return "order-" + strconv.FormatInt(e.OrderID, 10)
}
