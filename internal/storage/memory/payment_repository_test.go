package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

func newStoredPayment(id, orderID string) domain.Payment {
	now := time.Now().UTC()
	return domain.Payment{
		ID:          id,
		OrderID:     orderID,
		AmountMinor: 7500,
		Currency:    "SAR",
		Method:      domain.PaymentMethodCard,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPaymentRepository_CreateAndLookup(t *testing.T) {
	repo := NewPaymentRepository()
	payment := newStoredPayment("pay-1", "order-1")

	if err := repo.Create(payment); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(payment); !errors.Is(err, domain.ErrPaymentAlreadyExists) {
		t.Fatalf("duplicate create: expected ErrPaymentAlreadyExists, got %v", err)
	}

	got, err := repo.Get("pay-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OrderID != "order-1" {
		t.Fatalf("unexpected payment: %+v", got)
	}

	byOrder, err := repo.GetByOrderID("order-1")
	if err != nil {
		t.Fatalf("get by order: %v", err)
	}
	if byOrder.ID != "pay-1" {
		t.Fatalf("unexpected payment by order: %+v", byOrder)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := repo.GetByOrderID("missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound by order, got %v", err)
	}
}

func TestPaymentRepository_UpdateStatus(t *testing.T) {
	repo := NewPaymentRepository()
	payment := newStoredPayment("pay-1", "order-1")
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create: %v", err)
	}

	response := []byte(`{"code":"approved"}`)
	if err := repo.UpdateStatus("pay-1", domain.PaymentStatusCompleted, "txn-42", response); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, _ := repo.Get("pay-1")
	if got.Status != domain.PaymentStatusCompleted {
		t.Fatalf("status: got %s", got.Status)
	}
	if got.TransactionID != "txn-42" {
		t.Fatalf("transaction id: got %q", got.TransactionID)
	}
	if string(got.GatewayResponse) != `{"code":"approved"}` {
		t.Fatalf("gateway response: got %s", got.GatewayResponse)
	}

	// Терминальный completed допускает только refunded.
	err := repo.UpdateStatus("pay-1", domain.PaymentStatusFailed, "", nil)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if err := repo.UpdateStatus("pay-1", domain.PaymentStatusRefunded, "", nil); err != nil {
		t.Fatalf("refund: %v", err)
	}

	if err := repo.UpdateStatus("missing", domain.PaymentStatusCompleted, "", nil); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
