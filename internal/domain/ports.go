package domain

import "context"

// StockLedger ведёт учёт остатков и выдаёт атомарные резервы под checkout.
// Проверка stock >= qty и списание выполняются как один неделимый шаг
// относительно конкурентных резервов того же товара.
type StockLedger interface {
	// Reserve атомарно списывает qty единиц товара. При нехватке возвращает
	// *InsufficientStockError, при неизвестном товаре — ErrProductNotFound.
	Reserve(ctx context.Context, productID string, qty int32) (Reservation, error)
	// Release снимает резерв (компенсация). Идемпотентен: повторный вызов
	// по тому же reservationID — no-op.
	Release(ctx context.Context, reservationID string) error
	// Available возвращает текущий свободный остаток товара.
	Available(ctx context.Context, productID string) (int32, error)
	// SetStock заводит либо перезаписывает остаток товара (административная операция).
	SetStock(ctx context.Context, productID string, qty int32) error
}

// PaymentGateway оборачивает внешний платёжный процессор.
type PaymentGateway interface {
	// Process проводит платёж. Отклонение — result.Success == false при nil-ошибке;
	// временные сбои — ошибки, обёрнутые в ErrGatewayTimeout / ErrGatewayUnavailable.
	// Оплата при получении возвращает отложенный успех (result.Deferred).
	Process(ctx context.Context, payment Payment, details PaymentDetails) (GatewayResult, error)
}

// ShippingCalculator оценивает стоимость и доступность доставки.
type ShippingCalculator interface {
	// Quote считает стоимость доставки. Для корзины без физических товаров
	// возвращает нулевую стоимость в режиме digital. Неизвестный или
	// отключённый способ — ошибка, обёрнутая в ErrShippingUnavailable.
	Quote(items []CheckoutItem, address *Address, method ShippingMethod) (ShippingQuote, error)
	// AvailableMethods возвращает способы доставки для выбора на стороне UI;
	// внутри оркестратора повторно не проверяется.
	AvailableMethods(address *Address, items []CheckoutItem) []ShippingMethodInfo
}
