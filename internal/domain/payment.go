package domain

import (
	"encoding/json"
	"time"
)

// PaymentStatus описывает состояние платежа в системе.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан, списание ещё не подтверждено.
	// Для оплаты при получении статус остаётся pending и после подтверждения заказа.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — шлюз принял платёж, средства списаны.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил платёж либо исчерпаны повторы.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — средства возвращены; достижим только из completed,
	// сам процесс возврата лежит за пределами этого ядра.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal сообщает, завершён ли первичный цикл платежа.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// CanTransitionTo проверяет допустимость перехода статуса платежа.
// pending -> completed | failed; completed -> refunded. Повторная обработка
// терминального платежа запрещена.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// PaymentMethod — закрытое множество способов оплаты. Оплата при получении
// смоделирована явным вариантом, а не строковым особым случаем.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid проверяет, что способ оплаты распознан.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return true
	default:
		return false
	}
}

// Deferred сообщает, что списание средств отложено до физической передачи товара.
// Заказ при этом подтверждается, платёж остаётся в pending.
func (m PaymentMethod) Deferred() bool {
	return m == PaymentMethodCashOnDelivery
}

// PaymentDetails — непрозрачные данные способа оплаты (номер карты, счёт и т.п.).
// Ядро передаёт их шлюзу как есть.
type PaymentDetails map[string]string

// Payment описывает платёж, связанный с заказом (1:1 в рамках одного checkout).
type Payment struct {
	ID          string        `json:"id"`
	OrderID     string        `json:"order_id"`
	CustomerID  string        `json:"customer_id,omitempty"`
	AmountMinor int64         `json:"amount_minor"`
	Currency    string        `json:"currency"`
	Method      PaymentMethod `json:"method"`
	Status      PaymentStatus `json:"status"`
	// TransactionID заполняется только при успешном завершении.
	TransactionID string `json:"transaction_id,omitempty"`
	// GatewayResponse — непрозрачный ответ шлюза для аудита.
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if !p.Method.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	return errs
}

// GatewayResult — исход обращения к платёжному шлюзу.
type GatewayResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	// Deferred выставляется для оплаты при получении: заказ подтверждаем,
	// платёж остаётся pending.
	Deferred bool            `json:"deferred,omitempty"`
	Message  string          `json:"message,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}
