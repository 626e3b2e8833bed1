package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

func testPayment(method domain.PaymentMethod) domain.Payment {
	return domain.Payment{
		ID:          "pay-1",
		OrderID:     "order-1",
		AmountMinor: 7500,
		Currency:    "SAR",
		Method:      method,
		Status:      domain.PaymentStatusPending,
	}
}

func TestGateway_ProcessApproved(t *testing.T) {
	gateway := NewGateway(GatewayConfig{}, nil)

	result, err := gateway.Process(context.Background(), testPayment(domain.PaymentMethodCard), domain.PaymentDetails{
		"card_number": "4111111111111111",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.TransactionID == "" {
		t.Fatalf("expected transaction id")
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(result.Response, &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Code != "approved" {
		t.Fatalf("response code: got %q", body.Code)
	}
}

func TestGateway_ProcessDeclined(t *testing.T) {
	gateway := NewGateway(GatewayConfig{DeclinedCards: []string{"4000000000000002"}}, nil)

	tests := []struct {
		name    string
		method  domain.PaymentMethod
		details domain.PaymentDetails
	}{
		{"blocked card", domain.PaymentMethodCard, domain.PaymentDetails{"card_number": "4000000000000002"}},
		{"missing card number", domain.PaymentMethodCard, nil},
		{"missing iban", domain.PaymentMethodBankTransfer, nil},
		{"forced decline", domain.PaymentMethodCard, domain.PaymentDetails{"card_number": "4111111111111111", "simulate": "decline"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := gateway.Process(context.Background(), testPayment(tc.method), tc.details)
			if err != nil {
				t.Fatalf("decline must not be an error, got %v", err)
			}
			if result.Success {
				t.Fatalf("expected decline, got %+v", result)
			}
			if result.TransactionID != "" {
				t.Fatalf("declined payment must not carry transaction id")
			}
		})
	}
}

func TestGateway_ProcessTransientFailures(t *testing.T) {
	gateway := NewGateway(GatewayConfig{}, nil)

	_, err := gateway.Process(context.Background(), testPayment(domain.PaymentMethodCard), domain.PaymentDetails{
		"card_number": "4111111111111111",
		"simulate":    "timeout",
	})
	if !errors.Is(err, domain.ErrGatewayTimeout) {
		t.Fatalf("expected ErrGatewayTimeout, got %v", err)
	}
	if !domain.IsRetryablePaymentError(err) {
		t.Fatalf("timeout must be retryable")
	}

	_, err = gateway.Process(context.Background(), testPayment(domain.PaymentMethodCard), domain.PaymentDetails{
		"card_number": "4111111111111111",
		"simulate":    "unavailable",
	})
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestGateway_ProcessCashOnDelivery(t *testing.T) {
	gateway := NewGateway(GatewayConfig{}, nil)

	result, err := gateway.Process(context.Background(), testPayment(domain.PaymentMethodCashOnDelivery), nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Success || !result.Deferred {
		t.Fatalf("expected deferred success, got %+v", result)
	}
	if result.TransactionID != "" {
		t.Fatalf("deferred payment must not carry transaction id")
	}
}

func TestGateway_TestModeSkipsVerification(t *testing.T) {
	gateway := NewGateway(GatewayConfig{TestMode: true}, nil)

	result, err := gateway.Process(context.Background(), testPayment(domain.PaymentMethodCard), nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Success {
		t.Fatalf("test mode must accept payment without details, got %+v", result)
	}
}

func TestGateway_LatencyHonorsContext(t *testing.T) {
	gateway := NewGateway(GatewayConfig{Latency: time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gateway.Process(ctx, testPayment(domain.PaymentMethodCard), domain.PaymentDetails{
		"card_number": "4111111111111111",
	})
	if !errors.Is(err, domain.ErrGatewayTimeout) {
		t.Fatalf("expected ErrGatewayTimeout on cancelled context, got %v", err)
	}
}
