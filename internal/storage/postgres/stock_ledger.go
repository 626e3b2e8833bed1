package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daralkutub/checkout/internal/domain"
)

type stockLedger struct {
	db *sql.DB
}

// NewStockLedger создаёт PostgreSQL-реализацию StockLedger. Атомарность
// резерва обеспечивает условный UPDATE: проверка остатка и списание —
// одна SQL-команда.
func NewStockLedger(store *Store) domain.StockLedger {
	return &stockLedger{db: store.DB()}
}

func (l *stockLedger) Reserve(ctx context.Context, productID string, qty int32) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, domain.ErrItemQtyInvalid
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(opCtx, nil)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(opCtx, `
		UPDATE stock
		SET qty = qty - $2
		WHERE product_id = $1
		  AND qty >= $2
	`, productID, qty)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		available, availErr := l.availableTx(opCtx, tx, productID)
		if availErr != nil {
			err = availErr
			return domain.Reservation{}, err
		}
		err = &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
		return domain.Reservation{}, err
	}

	reservation := domain.Reservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		Qty:       qty,
		Status:    domain.ReservationStatusReserved,
		CreatedAt: time.Now().UTC(),
	}

	if _, err = tx.ExecContext(opCtx, `
		INSERT INTO stock_reservations (id, product_id, qty, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, reservation.ID, reservation.ProductID, reservation.Qty,
		string(reservation.Status), reservation.CreatedAt,
	); err != nil {
		return domain.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Reservation{}, fmt.Errorf("commit reserve: %w", err)
	}

	return reservation, nil
}

// Release снимает резерв и возвращает количество на склад. Идемпотентен:
// условный UPDATE по статусу гарантирует, что возврат случится один раз.
func (l *stockLedger) Release(ctx context.Context, reservationID string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(opCtx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var productID string
	var qty int32
	err = tx.QueryRowContext(opCtx, `
		UPDATE stock_reservations
		SET status = $1
		WHERE id = $2
		  AND status = $3
		RETURNING product_id, qty
	`, string(domain.ReservationStatusReleased), reservationID,
		string(domain.ReservationStatusReserved),
	).Scan(&productID, &qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Либо резерв неизвестен, либо уже снят; второе — no-op.
			var exists bool
			if checkErr := tx.QueryRowContext(opCtx, `
				SELECT EXISTS (SELECT 1 FROM stock_reservations WHERE id = $1)
			`, reservationID).Scan(&exists); checkErr != nil {
				err = fmt.Errorf("check reservation: %w", checkErr)
				return err
			}
			if !exists {
				err = domain.ErrReservationNotFound
				return err
			}
			return tx.Commit()
		}
		return fmt.Errorf("release reservation: %w", err)
	}

	if _, err = tx.ExecContext(opCtx, `
		UPDATE stock SET qty = qty + $2 WHERE product_id = $1
	`, productID, qty); err != nil {
		return fmt.Errorf("return stock: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	return nil
}

func (l *stockLedger) Available(ctx context.Context, productID string) (int32, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var qty int32
	err := l.db.QueryRowContext(opCtx, `
		SELECT qty FROM stock WHERE product_id = $1
	`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("select stock: %w", err)
	}

	return qty, nil
}

func (l *stockLedger) SetStock(ctx context.Context, productID string, qty int32) error {
	if qty < 0 {
		return domain.ErrItemQtyInvalid
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := l.db.ExecContext(opCtx, `
		INSERT INTO stock (product_id, qty)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET qty = EXCLUDED.qty
	`, productID, qty); err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}

	return nil
}

func (l *stockLedger) availableTx(ctx context.Context, tx *sql.Tx, productID string) (int32, error) {
	var qty int32
	err := tx.QueryRowContext(ctx, `
		SELECT qty FROM stock WHERE product_id = $1
	`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("select stock: %w", err)
	}
	return qty, nil
}

var _ domain.StockLedger = (*stockLedger)(nil)
