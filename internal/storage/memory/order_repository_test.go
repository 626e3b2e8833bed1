package memory

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

func newStoredOrder(id, customerID string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            id,
		CustomerID:    customerID,
		CustomerName:  "Aisha Rahman",
		CustomerEmail: "aisha@example.com",
		CustomerPhone: "+966500000001",
		Currency:      "SAR",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		SubtotalMinor: 7500,
		TotalMinor:    7500,
		Items: []domain.OrderItem{
			{ID: id + "-item-1", OrderID: id, ProductID: "ebook-1", Qty: 1, UnitPriceMinor: 7500, TotalPriceMinor: 7500},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	repo := NewOrderRepository()
	order := newStoredOrder("order-1", "cust-1")

	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("duplicate create: expected ErrOrderAlreadyExists, got %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != order.ID || len(got.Items) != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}

	// Мутация возвращённой копии не должна затрагивать хранилище.
	got.Items[0].Qty = 99
	again, _ := repo.Get("order-1")
	if again.Items[0].Qty != 1 {
		t.Fatalf("stored order mutated through returned copy")
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_UpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		wantErr bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, false},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusFulfilled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusFulfilled, domain.OrderStatusPending, true},
	}

	for i, tc := range tests {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			repo := NewOrderRepository()
			order := newStoredOrder(fmt.Sprintf("order-%d", i), "cust-1")
			order.Status = tc.from
			if err := repo.Create(order); err != nil {
				t.Fatalf("create: %v", err)
			}

			err := repo.UpdateStatus(order.ID, tc.to)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidStateTransition) {
					t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("update status: %v", err)
			}

			got, _ := repo.Get(order.ID)
			if got.Status != tc.to {
				t.Fatalf("status: got %s, want %s", got.Status, tc.to)
			}
			if got.Version != order.Version+1 {
				t.Fatalf("version not bumped: got %d", got.Version)
			}
		})
	}
}

func TestOrderRepository_UpdatePaymentStatus(t *testing.T) {
	repo := NewOrderRepository()
	order := newStoredOrder("order-1", "cust-1")
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdatePaymentStatus("order-1", domain.PaymentStatusCompleted); err != nil {
		t.Fatalf("update payment status: %v", err)
	}
	got, _ := repo.Get("order-1")
	if got.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("payment status: got %s", got.PaymentStatus)
	}

	// completed -> pending запрещён.
	err := repo.UpdatePaymentStatus("order-1", domain.PaymentStatusPending)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestOrderRepository_ListByCustomer(t *testing.T) {
	repo := NewOrderRepository()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		order := newStoredOrder(fmt.Sprintf("order-%d", i), "cust-1")
		order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(order); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other := newStoredOrder("order-other", "cust-2")
	if err := repo.Create(other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	orders, err := repo.ListByCustomer("cust-1", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("len: got %d, want 3", len(orders))
	}
	// Сортировка от новых к старым.
	if orders[0].ID != "order-4" || orders[2].ID != "order-2" {
		t.Fatalf("unexpected ordering: %s, %s, %s", orders[0].ID, orders[1].ID, orders[2].ID)
	}

	empty, err := repo.ListByCustomer("nobody", 0)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no orders, got %d", len(empty))
	}
}
