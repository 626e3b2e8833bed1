package domain_test

import (
	"testing"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

// helper для создания консистентного заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		CustomerID:    "customer-1",
		CustomerName:  "Ahmed",
		CustomerEmail: "ahmed@example.com",
		CustomerPhone: "+966500000001",
		Currency:      "SAR",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		SubtotalMinor: 500,
		TotalMinor:    500,
		Items: []domain.OrderItem{
			{
				ID:              "item-1",
				OrderID:         "order-1",
				ProductID:       "book-1",
				Title:           "Book One",
				Qty:             5,
				UnitPriceMinor:  100,
				TotalPriceMinor: 500,
				CreatedAt:       now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_TotalIncludesShippingAndTax(t *testing.T) {
	order := makeOrder()
	order.ShippingCostMinor = 150
	order.TaxMinor = 75

	if errs := order.ValidateInvariants(); len(errs) == 0 {
		t.Fatal("expected total mismatch error, got none")
	}

	order.TotalMinor = order.SubtotalMinor + order.ShippingCostMinor + order.TaxMinor
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer email",
			mut: func(o *domain.Order) {
				o.CustomerEmail = ""
			},
		},
		{
			name: "no currency",
			mut: func(o *domain.Order) {
				o.Currency = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPriceMinor = -5
			},
		},
		{
			name: "item total mismatch",
			mut: func(o *domain.Order) {
				o.Items[0].TotalPriceMinor = 1
			},
		},
		{
			name: "subtotal mismatch",
			mut: func(o *domain.Order) {
				o.SubtotalMinor = 999
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 999
			},
		},
		{
			name: "negative shipping",
			mut: func(o *domain.Order) {
				o.ShippingCostMinor = -1
			},
		},
		{
			name: "unknown status",
			mut: func(o *domain.Order) {
				o.Status = "shipped"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusFulfilled, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusFulfilled, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusConfirmed, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
		{domain.OrderStatusFulfilled, domain.OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
				t.Fatalf("transition %s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}
