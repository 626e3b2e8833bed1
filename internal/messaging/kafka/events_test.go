package kafka

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewCheckoutEvent(t *testing.T) {
	before := time.Now()
	event := NewCheckoutEvent(EventTypeCheckoutCompleted, "order-1", "cust-1", map[string]interface{}{
		"total_minor": int64(7500),
	})

	if event.EventType != EventTypeCheckoutCompleted {
		t.Fatalf("event type: got %s", event.EventType)
	}
	if event.OrderID != "order-1" || event.CustomerID != "cust-1" {
		t.Fatalf("unexpected identifiers: %+v", event)
	}
	if event.Timestamp.Before(before) {
		t.Fatalf("timestamp not set")
	}
}

func TestCheckoutEventJSONShape(t *testing.T) {
	event := NewCheckoutEvent(EventTypeStockReserved, "order-1", "", map[string]interface{}{
		"product_id": "book-1",
		"qty":        2,
	})

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["event_type"] != "stock.reserved" {
		t.Fatalf("event_type: got %v", decoded["event_type"])
	}
	if decoded["order_id"] != "order-1" {
		t.Fatalf("order_id: got %v", decoded["order_id"])
	}
	// Пустой customer_id опускается.
	if _, ok := decoded["customer_id"]; ok {
		t.Fatalf("empty customer_id must be omitted")
	}
}
