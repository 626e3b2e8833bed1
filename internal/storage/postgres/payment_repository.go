package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var gatewayResponse any
	if len(payment.GatewayResponse) > 0 {
		gatewayResponse = []byte(payment.GatewayResponse)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, customer_id, amount_minor, currency, method,
			status, transaction_id, gateway_response, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		payment.ID, payment.OrderID, payment.CustomerID,
		payment.AmountMinor, payment.Currency, string(payment.Method),
		string(payment.Status), payment.TransactionID, gatewayResponse,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentAlreadyExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) Get(id string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryOne(ctx, `WHERE id = $1`, id)
}

func (r *paymentRepository) GetByOrderID(orderID string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryOne(ctx, `WHERE order_id = $1`, orderID)
}

// UpdateStatus применяет переход машины состояний платежа под блокировкой строки.
func (r *paymentRepository) UpdateStatus(id string, status domain.PaymentStatus, transactionID string, gatewayResponse []byte) error {
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

	var currentRaw string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM payments WHERE id = $1 FOR UPDATE
	`, id).Scan(&currentRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrPaymentNotFound
			return err
		}
		return fmt.Errorf("lock payment row: %w", err)
	}

	current := domain.PaymentStatus(currentRaw)
	if !current.CanTransitionTo(status) {
		err = &domain.InvalidTransitionError{
			Entity: "payment",
			From:   string(current),
			To:     string(status),
		}
		return err
	}

	var response any
	if len(gatewayResponse) > 0 {
		response = gatewayResponse
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    transaction_id = CASE WHEN $2 <> '' THEN $2 ELSE transaction_id END,
		    gateway_response = COALESCE($3, gateway_response),
		    updated_at = $4
		WHERE id = $5
	`, string(status), transactionID, response, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment transition: %w", err)
	}

	return nil
}

func (r *paymentRepository) queryOne(ctx context.Context, where string, arg any) (domain.Payment, error) {
	var payment domain.Payment
	var status, method string
	var transactionID sql.NullString
	var gatewayResponse []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount_minor, currency, method,
		       status, transaction_id, gateway_response, created_at, updated_at
		FROM payments
	`+where, arg).Scan(
		&payment.ID, &payment.OrderID, &payment.CustomerID,
		&payment.AmountMinor, &payment.Currency, &method,
		&status, &transactionID, &gatewayResponse,
		&payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)
	if transactionID.Valid {
		payment.TransactionID = transactionID.String
	}
	if len(gatewayResponse) > 0 {
		payment.GatewayResponse = append([]byte(nil), gatewayResponse...)
	}

	return payment, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
