package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями и записью доставки как одно
	// целое: либо видимо всё, либо ничего. ErrOrderAlreadyExists при повторе ID.
	Create(order Order) error
	// Get возвращает заказ с позициями и доставкой или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента с ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// UpdateStatus применяет переход машины состояний заказа; недопустимый
	// переход отклоняется с ErrInvalidStateTransition.
	UpdateStatus(id string, status OrderStatus) error
	// UpdatePaymentStatus обновляет зеркало статуса платежа на заказе.
	UpdatePaymentStatus(id string, status PaymentStatus) error
}

// PaymentRepository описывает требования к хранилищу платежей.
type PaymentRepository interface {
	Create(payment Payment) error
	Get(id string) (Payment, error)
	GetByOrderID(orderID string) (Payment, error)
	// UpdateStatus применяет переход машины состояний платежа; transactionID и
	// gatewayResponse записываются вместе с новым статусом. Повторная обработка
	// терминального платежа отклоняется с ErrInvalidStateTransition.
	UpdateStatus(id string, status PaymentStatus, transactionID string, gatewayResponse []byte) error
}

// IdempotencyRepository хранит состояние обработки checkout-запросов по idempotency-key.
type IdempotencyRepository interface {
	// CreateProcessing заводит processing-запись. Если ключ уже существует,
	// возвращает существующую запись и ErrIdempotencyKeyAlreadyExists либо
	// ErrIdempotencyHashMismatch при другом теле запроса.
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, response []byte) error
	// MarkFailed фиксирует терминальный отказ. failureOrderID пуст, если отказ
	// случился до создания заказа.
	MarkFailed(key, failureCode, failureMessage, failureOrderID string) error
	// DeleteExpired удаляет записи с ttl <= before, не больше limit за вызов.
	DeleteExpired(before time.Time, limit int) (int, error)
}
