package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daralkutub/checkout/internal/domain"
)

// stockLedgerInMemory — in-memory реализация StockLedger. Проверка и списание
// выполняются под одним мьютексом, поэтому конкурентные резервы одного товара
// не могут оба пройти мимо нуля. Мьютекс держится только на время
// check-and-decrement, никогда на время внешних вызовов.
type stockLedgerInMemory struct {
	mu           sync.Mutex
	stock        map[string]int32
	reservations map[string]domain.Reservation
}

// NewStockLedger возвращает in-memory ledger для локальной разработки и тестов.
func NewStockLedger() domain.StockLedger {
	return &stockLedgerInMemory{
		stock:        make(map[string]int32),
		reservations: make(map[string]domain.Reservation),
	}
}

// Reserve атомарно списывает qty единиц товара или возвращает типизированную нехватку.
func (l *stockLedgerInMemory) Reserve(_ context.Context, productID string, qty int32) (domain.Reservation, error) {
	if productID == "" {
		return domain.Reservation{}, domain.ErrProductIDRequired
	}
	if qty <= 0 {
		return domain.Reservation{}, domain.ErrItemQtyInvalid
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.stock[productID]
	if !ok {
		return domain.Reservation{}, domain.ErrProductNotFound
	}
	if available < qty {
		return domain.Reservation{}, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}

	l.stock[productID] = available - qty
	reservation := domain.Reservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		Qty:       qty,
		Status:    domain.ReservationStatusReserved,
		CreatedAt: time.Now().UTC(),
	}
	l.reservations[reservation.ID] = reservation

	return reservation, nil
}

// Release возвращает остаток по резерву. Повторный вызов по тому же ID — no-op.
func (l *stockLedgerInMemory) Release(_ context.Context, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	reservation, ok := l.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if reservation.Status == domain.ReservationStatusReleased {
		return nil
	}

	l.stock[reservation.ProductID] += reservation.Qty
	reservation.Status = domain.ReservationStatusReleased
	l.reservations[reservationID] = reservation

	return nil
}

// Available возвращает свободный остаток товара.
func (l *stockLedgerInMemory) Available(_ context.Context, productID string) (int32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.stock[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return available, nil
}

// SetStock заводит либо перезаписывает остаток товара.
func (l *stockLedgerInMemory) SetStock(_ context.Context, productID string, qty int32) error {
	if productID == "" {
		return domain.ErrProductIDRequired
	}
	if qty < 0 {
		return domain.ErrAmountNegative
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.stock[productID] = qty
	return nil
}

var _ domain.StockLedger = (*stockLedgerInMemory)(nil)
