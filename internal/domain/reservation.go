package domain

import "time"

// ReservationStatus отражает состояние резерва остатка под конкретный checkout.
type ReservationStatus string

const (
	// ReservationStatusReserved — остаток списан, резерв удерживается.
	ReservationStatusReserved ReservationStatus = "reserved"
	// ReservationStatusReleased — резерв снят компенсацией, остаток возвращён.
	ReservationStatusReleased ReservationStatus = "released"
)

// Reservation — атомарное списание остатка товара, обратимое через Release.
// Повторный Release по тому же ID — no-op, а не двойной возврат.
type Reservation struct {
	ID        string            `json:"id"`
	ProductID string            `json:"product_id"`
	Qty       int32             `json:"qty"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// Validate проверяет, корректно ли заполнены ключевые поля резерва.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.Qty <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}

	return errs
}
