package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/daralkutub/checkout/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create сохраняет заказ, позиции и запись доставки в одной транзакции:
// частично записанных заказов не бывает.
func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, customer_name, customer_email, customer_phone,
			subtotal_minor, shipping_cost_minor, tax_minor, total_minor, currency,
			status, payment_status, notes, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		order.ID, order.CustomerID, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.SubtotalMinor, order.ShippingCostMinor, order.TaxMinor, order.TotalMinor, order.Currency,
		string(order.Status), string(order.PaymentStatus), order.Notes, order.Version,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, title, unit_price_minor, qty, total_price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID, order.ID, item.ProductID, item.Title,
			item.UnitPriceMinor, item.Qty, item.TotalPriceMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if order.Shipping != nil {
		shipping := order.Shipping
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO shipments (
				id, order_id, method, cost_minor,
				address_line1, address_city, address_region, address_postal_code, address_country,
				created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			shipping.ID, order.ID, string(shipping.Method), shipping.CostMinor,
			shipping.Address.Line1, shipping.Address.City, shipping.Address.Region,
			shipping.Address.PostalCode, shipping.Address.Country,
			shipping.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert shipment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := r.loadOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	shipping, err := r.loadShipping(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Shipping = shipping

	return order, nil
}

func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, customer_id, customer_name, customer_email, customer_phone,
		       subtotal_minor, shipping_cost_minor, tax_minor, total_minor, currency,
		       status, payment_status, notes, version, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items

		shipping, err := r.loadShipping(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Shipping = shipping
	}

	return orders, nil
}

// UpdateStatus применяет переход машины состояний заказа. Текущий статус
// блокируется FOR UPDATE, чтобы конкурирующие переходы сериализовались.
func (r *orderRepository) UpdateStatus(id string, status domain.OrderStatus) error {
	return r.transition(id, func(order *domain.Order) error {
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
		return nil
	})
}

// UpdatePaymentStatus обновляет зеркало статуса платежа на заказе.
func (r *orderRepository) UpdatePaymentStatus(id string, status domain.PaymentStatus) error {
	return r.transition(id, func(order *domain.Order) error {
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
		return nil
	})
}

func (r *orderRepository) transition(id string, mutate func(*domain.Order) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var order domain.Order
	var status, paymentStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT id, status, payment_status, version
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&order.ID, &status, &paymentStatus, &order.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrOrderNotFound
			return err
		}
		return fmt.Errorf("lock order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)

	before := order
	if err = mutate(&order); err != nil {
		return err
	}
	if order.Status == before.Status && order.PaymentStatus == before.PaymentStatus {
		return tx.Commit()
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
	`, string(order.Status), string(order.PaymentStatus), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order transition: %w", err)
	}

	return nil
}

func (r *orderRepository) loadOrder(ctx context.Context, id string) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, customer_email, customer_phone,
		       subtotal_minor, shipping_cost_minor, tax_minor, total_minor, currency,
		       status, payment_status, notes, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var status, paymentStatus string

	err := row.Scan(
		&order.ID, &order.CustomerID, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone,
		&order.SubtotalMinor, &order.ShippingCostMinor, &order.TaxMinor, &order.TotalMinor, &order.Currency,
		&status, &paymentStatus, &order.Notes, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, title, unit_price_minor, qty, total_price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Title,
			&item.UnitPriceMinor, &item.Qty, &item.TotalPriceMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) loadShipping(ctx context.Context, orderID string) (*domain.Shipping, error) {
	var shipping domain.Shipping
	var method string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, method, cost_minor,
		       address_line1, address_city, address_region, address_postal_code, address_country,
		       created_at
		FROM shipments
		WHERE order_id = $1
	`, orderID).Scan(
		&shipping.ID, &shipping.OrderID, &method, &shipping.CostMinor,
		&shipping.Address.Line1, &shipping.Address.City, &shipping.Address.Region,
		&shipping.Address.PostalCode, &shipping.Address.Country,
		&shipping.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load shipment: %w", err)
	}

	shipping.Method = domain.ShippingMethod(method)
	return &shipping, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
