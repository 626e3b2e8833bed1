package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
)

// Ключи payment details, которые понимает симулятор.
const (
	detailCardNumber = "card_number"
	detailIBAN       = "iban"
	// detailSimulate форсирует исход в тестовых сценариях:
	// decline | timeout | unavailable.
	detailSimulate = "simulate"
)

// GatewayConfig настраивает симулятор платёжного шлюза.
type GatewayConfig struct {
	// Latency — искусственная задержка обработки, имитирует сетевой вызов.
	Latency time.Duration
	// DeclinedCards — номера карт, которые шлюз всегда отклоняет.
	DeclinedCards []string
	// TestMode пропускает проверку реквизитов и принимает любой платёж.
	TestMode bool
}

// Gateway — симулятор внешнего платёжного процессора. Встаёт на место
// боевого адаптера: отклонения, задержки и временные сбои настраиваются
// через конфигурацию и payment details.
type Gateway struct {
	config   GatewayConfig
	declined map[string]struct{}
	logger   *log.Entry
}

// NewGateway создаёт симулятор шлюза.
func NewGateway(config GatewayConfig, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}

	declined := make(map[string]struct{}, len(config.DeclinedCards))
	for _, card := range config.DeclinedCards {
		declined[strings.TrimSpace(card)] = struct{}{}
	}

	return &Gateway{
		config:   config,
		declined: declined,
		logger:   logger,
	}
}

// Process проводит платёж. Оплата при получении завершается отложенным
// успехом без обращения к процессору. Отклонение — не ошибка: возвращается
// result.Success == false. Временные сбои оборачиваются в ErrGatewayTimeout
// и ErrGatewayUnavailable, чтобы вызывающая сторона могла повторить попытку.
func (g *Gateway) Process(ctx context.Context, payment domain.Payment, details domain.PaymentDetails) (domain.GatewayResult, error) {
	if payment.Method.Deferred() {
		return domain.GatewayResult{
			Success:  true,
			Deferred: true,
			Message:  "payment deferred until delivery",
			Response: mustMarshal(gatewayResponse{Code: "deferred", Method: string(payment.Method)}),
		}, nil
	}

	if err := g.wait(ctx); err != nil {
		return domain.GatewayResult{}, fmt.Errorf("gateway latency: %w", domain.ErrGatewayTimeout)
	}

	switch details[detailSimulate] {
	case "timeout":
		return domain.GatewayResult{}, fmt.Errorf("processor did not respond: %w", domain.ErrGatewayTimeout)
	case "unavailable":
		return domain.GatewayResult{}, fmt.Errorf("processor returned 503: %w", domain.ErrGatewayUnavailable)
	case "decline":
		return g.decline(payment, "declined by simulation"), nil
	}

	if !g.config.TestMode {
		if reason := g.verifyDetails(payment.Method, details); reason != "" {
			return g.decline(payment, reason), nil
		}
	}

	transactionID := "txn_" + uuid.NewString()
	g.logger.WithFields(log.Fields{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"amount_minor":   payment.AmountMinor,
		"transaction_id": transactionID,
	}).Info("payment approved")

	return domain.GatewayResult{
		Success:       true,
		TransactionID: transactionID,
		Message:       "approved",
		Response: mustMarshal(gatewayResponse{
			Code:          "approved",
			Method:        string(payment.Method),
			TransactionID: transactionID,
			AmountMinor:   payment.AmountMinor,
			Currency:      payment.Currency,
		}),
	}, nil
}

func (g *Gateway) decline(payment domain.Payment, reason string) domain.GatewayResult {
	g.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"reason":     reason,
	}).Warn("payment declined")

	return domain.GatewayResult{
		Success: false,
		Message: reason,
		Response: mustMarshal(gatewayResponse{
			Code:   "declined",
			Method: string(payment.Method),
			Reason: reason,
		}),
	}
}

// verifyDetails проверяет реквизиты способа оплаты; пустая строка — реквизиты приняты.
func (g *Gateway) verifyDetails(method domain.PaymentMethod, details domain.PaymentDetails) string {
	switch method {
	case domain.PaymentMethodCard:
		card := strings.TrimSpace(details[detailCardNumber])
		if card == "" {
			return "card number is required"
		}
		if _, blocked := g.declined[card]; blocked {
			return "card declined by issuer"
		}
	case domain.PaymentMethodBankTransfer:
		if strings.TrimSpace(details[detailIBAN]) == "" {
			return "iban is required"
		}
	}
	return ""
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.config.Latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(g.config.Latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// gatewayResponse — тело ответа симулятора, сохраняется в Payment.GatewayResponse.
type gatewayResponse struct {
	Code          string `json:"code"`
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id,omitempty"`
	AmountMinor   int64  `json:"amount_minor,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Структура ответа фиксирована, сериализация не может упасть.
		panic(err)
	}
	return data
}

var _ domain.PaymentGateway = (*Gateway)(nil)
