package kafka

import "time"

// EventType определяет тип события checkout-жизненного цикла.
type EventType string

const (
	// Checkout события
	EventTypeCheckoutStarted   EventType = "checkout.started"
	EventTypeCheckoutCompleted EventType = "checkout.completed"
	EventTypeCheckoutFailed    EventType = "checkout.failed"

	// Складские события
	EventTypeStockReserved EventType = "stock.reserved"
	EventTypeStockReleased EventType = "stock.released"

	// Платёжные события
	EventTypePaymentCompleted EventType = "payment.completed"
	EventTypePaymentFailed    EventType = "payment.failed"
	EventTypePaymentDeferred  EventType = "payment.deferred"
)

// Topics для Kafka
const (
	TopicCheckoutEvents = "checkout.events"
)

// CheckoutEvent представляет событие оформления заказа.
type CheckoutEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent создает новое событие checkout.
func NewCheckoutEvent(eventType EventType, orderID, customerID string, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}
