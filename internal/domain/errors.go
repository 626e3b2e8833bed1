package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка валидации checkout-запроса; побочных эффектов не было.
	ErrValidation = errors.New("checkout request validation failed")
	// ErrInsufficientStock — запрошенное количество недоступно на складе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrShippingUnavailable — выбранный способ доставки недоступен или не может быть оценён.
	ErrShippingUnavailable = errors.New("shipping method unavailable")
	// ErrPaymentFailed — платёж отклонён; заказ отменён, резервы сняты.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrGatewayTimeout — временная ошибка платёжного шлюза, допускает повтор.
	ErrGatewayTimeout = errors.New("payment gateway timeout")
	// ErrGatewayUnavailable — шлюз недоступен (5xx), допускает повтор.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidStateTransition — попытка недопустимого перехода статуса заказа или платежа.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrCheckoutInProgress — запрос с тем же idempotency-key ещё обрабатывается.
	ErrCheckoutInProgress = errors.New("checkout with the same idempotency key is already processing")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrPaymentNotFound — платёж не найден в хранилище.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentAlreadyExists — платёж с таким ID уже сохранён.
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	// ErrProductNotFound — товар не заведён в ledger остатков.
	ErrProductNotFound = errors.New("product not found in stock ledger")
	// ErrReservationNotFound — резерв с таким ID неизвестен ledger'у.
	ErrReservationNotFound = errors.New("reservation not found")

	// Ошибки idempotency-контура.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is already used with different request payload")
)

// Замечания валидации: из них собираются ValidationError и результаты ValidateInvariants.
var (
	ErrCustomerNameRequired    = errors.New("customer name is required")
	ErrCustomerEmailRequired   = errors.New("customer email is required")
	ErrCustomerPhoneRequired   = errors.New("customer phone is required")
	ErrCurrencyRequired        = errors.New("currency is required")
	ErrOrderIDRequired         = errors.New("order_id is required")
	ErrItemsRequired           = errors.New("order must contain at least one item")
	ErrItemQtyInvalid          = errors.New("item qty must be greater than zero")
	ErrItemPriceInvalid        = errors.New("item price must be non-negative")
	ErrItemTotalMismatch       = errors.New("item total does not match unit price * qty")
	ErrProductIDRequired       = errors.New("item product_id is required")
	ErrProductTypeInvalid      = errors.New("item product type is invalid")
	ErrSubtotalMismatch        = errors.New("order subtotal does not match items sum")
	ErrTotalMismatch           = errors.New("order total does not match subtotal + shipping + tax")
	ErrAmountNegative          = errors.New("order amounts must be non-negative")
	ErrOrderStatusInvalid      = errors.New("order status is invalid")
	ErrPaymentStatusInvalid    = errors.New("payment status is invalid")
	ErrPaymentMethodInvalid    = errors.New("payment method is not recognized")
	ErrShippingAddressRequired = errors.New("shipping address is required for physical items")
	ErrShippingMethodRequired  = errors.New("shipping method is required for physical items")
)

// InsufficientStockError уточняет, для какого товара не хватило остатка.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ValidationError агрегирует все замечания к checkout-запросу.
type ValidationError struct {
	Issues []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Error())
	}
	return "checkout request validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PaymentFailedError сохраняет причину отклонения платежа для вызывающей стороны.
type PaymentFailedError struct {
	OrderID string
	Reason  string
}

func (e *PaymentFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("payment failed for order %s", e.OrderID)
	}
	return fmt.Sprintf("payment failed for order %s: %s", e.OrderID, e.Reason)
}

func (e *PaymentFailedError) Unwrap() error {
	return ErrPaymentFailed
}

// InvalidTransitionError описывает отвергнутый переход статуса.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s -> %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// IsRetryablePaymentError проверяет, относится ли ошибка шлюза к временным.
func IsRetryablePaymentError(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, ErrGatewayUnavailable)
}
