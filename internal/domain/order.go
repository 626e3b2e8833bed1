package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в ядре checkout.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, платёж ещё не завершён.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — платёж принят (или отложен при оплате при получении), заказ подтверждён.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCancelled — заказ отменён: платёж отклонён либо отмена до подтверждения.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusFulfilled — заказ исполнен; терминальный статус для этого ядра.
	OrderStatusFulfilled OrderStatus = "fulfilled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusFulfilled:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода статуса заказа.
// pending -> confirmed | cancelled; confirmed -> fulfilled. Остальное запрещено.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusFulfilled
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа. Позиции неизменяемы после создания
// и живут ровно столько же, сколько сам заказ.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах (халалы).
	UnitPriceMinor int64 `json:"unit_price_minor"`
	Qty            int32 `json:"qty"`
	// TotalPriceMinor всегда равен UnitPriceMinor * Qty.
	TotalPriceMinor int64     `json:"total_price_minor"`
	CreatedAt       time.Time `json:"created_at"`
}

// Order агрегирует состояние заказа, его позиции и опциональную запись доставки.
type Order struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customer_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	SubtotalMinor     int64  `json:"subtotal_minor"`
	ShippingCostMinor int64  `json:"shipping_cost_minor"`
	TaxMinor          int64  `json:"tax_minor"`
	TotalMinor        int64  `json:"total_minor"`
	Currency          string `json:"currency"`

	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	Items []OrderItem `json:"items"`
	// Shipping присутствует только у заказов с физическими товарами.
	Shipping *Shipping `json:"shipping,omitempty"`
	Notes    string    `json:"notes,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerEmail == "" {
		errs = append(errs, ErrCustomerEmailRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if !o.PaymentStatus.Valid() {
		errs = append(errs, ErrPaymentStatusInvalid)
	}

	// Сверяем subtotal с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.TotalPriceMinor != int64(item.Qty)*item.UnitPriceMinor {
			errs = append(errs, ErrItemTotalMismatch)
		}
		calc += int64(item.Qty) * item.UnitPriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if o.ShippingCostMinor < 0 || o.TaxMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// total == subtotal + shipping + tax, всегда.
	if o.TotalMinor != o.SubtotalMinor+o.ShippingCostMinor+o.TaxMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
