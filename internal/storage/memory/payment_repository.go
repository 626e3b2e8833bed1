package memory

import (
	"sync"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Payment
	byOrder map[string]string
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items:   make(map[string]domain.Payment),
		byOrder: make(map[string]string),
	}
}

// Create сохраняет новый платёж. Для заказа допускается ровно один платёж
// в рамках одного checkout.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[payment.ID]; exists {
		return domain.ErrPaymentAlreadyExists
	}
	r.items[payment.ID] = clonePayment(payment)
	r.byOrder[payment.OrderID] = payment.ID
	return nil
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

// GetByOrderID возвращает платёж, связанный с заказом.
func (r *paymentRepositoryInMemory) GetByOrderID(orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return clonePayment(r.items[id]), nil
}

// UpdateStatus применяет переход машины состояний платежа и сохраняет
// ответ шлюза. Повторная обработка терминального платежа отклоняется.
func (r *paymentRepositoryInMemory) UpdateStatus(id string, status domain.PaymentStatus, transactionID string, gatewayResponse []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if !payment.Status.CanTransitionTo(status) {
		return &domain.InvalidTransitionError{
			Entity: "payment",
			From:   string(payment.Status),
			To:     string(status),
		}
	}

	payment.Status = status
	if transactionID != "" {
		payment.TransactionID = transactionID
	}
	if gatewayResponse != nil {
		payment.GatewayResponse = append([]byte(nil), gatewayResponse...)
	}
	payment.UpdatedAt = time.Now().UTC()
	r.items[id] = payment
	return nil
}

func clonePayment(src domain.Payment) domain.Payment {
	dst := src
	dst.GatewayResponse = append([]byte(nil), src.GatewayResponse...)
	return dst
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
