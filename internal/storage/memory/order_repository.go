package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет заказ с позициями и доставкой, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// UpdateStatus применяет переход машины состояний заказа.
func (r *orderRepositoryInMemory) UpdateStatus(id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status == status {
		return nil
	}
	if !order.Status.CanTransitionTo(status) {
		return &domain.InvalidTransitionError{
			Entity: "order",
			From:   string(order.Status),
			To:     string(status),
		}
	}

	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	r.items[id] = order
	return nil
}

// UpdatePaymentStatus обновляет зеркало статуса платежа на заказе.
func (r *orderRepositoryInMemory) UpdatePaymentStatus(id string, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.PaymentStatus == status {
		return nil
	}
	if !order.PaymentStatus.CanTransitionTo(status) {
		return &domain.InvalidTransitionError{
			Entity: "order payment",
			From:   string(order.PaymentStatus),
			To:     string(status),
		}
	}

	order.PaymentStatus = status
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	r.items[id] = order
	return nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	if src.Shipping != nil {
		shipping := *src.Shipping
		dst.Shipping = &shipping
	}
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
