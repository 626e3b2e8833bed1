package domain

import "time"

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что checkout принят и ещё выполняется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что checkout завершился успешно и результат сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что checkout завершился типизированной ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyRecord хранит состояние обработки checkout-запроса с idempotency-key.
// Повторный запрос с тем же ключом и телом получает сохранённый результат вместо
// повторного исполнения шагов саги.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	// Response — сериализованный CheckoutResult для done-записей.
	Response []byte
	// FailureCode и FailureMessage описывают типизированную ошибку для failed-записей.
	FailureCode    string
	FailureMessage string
	// FailureOrderID хранит заказ, на котором упал платёж: повтор по ключу
	// восстанавливает PaymentFailedError вместе с идентификатором заказа.
	FailureOrderID string
	Status         IdempotencyStatus
	TTLAt          time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
