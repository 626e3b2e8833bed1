package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/daralkutub/checkout/internal/domain"
)

func TestStockLedger_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	ledger := NewStockLedger()

	if err := ledger.SetStock(ctx, "book-1", 10); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	reservation, err := ledger.Reserve(ctx, "book-1", 3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reservation.Qty != 3 || reservation.ProductID != "book-1" {
		t.Fatalf("unexpected reservation: %+v", reservation)
	}

	available, err := ledger.Available(ctx, "book-1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 7 {
		t.Fatalf("available: got %d, want 7", available)
	}

	if err := ledger.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	available, _ = ledger.Available(ctx, "book-1")
	if available != 10 {
		t.Fatalf("available after release: got %d, want 10", available)
	}
}

func TestStockLedger_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := NewStockLedger()

	if err := ledger.SetStock(ctx, "book-1", 5); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	reservation, err := ledger.Reserve(ctx, "book-1", 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Двойной release не должен вернуть остаток дважды.
	if err := ledger.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := ledger.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("second release: %v", err)
	}

	available, _ := ledger.Available(ctx, "book-1")
	if available != 5 {
		t.Fatalf("available: got %d, want 5", available)
	}
}

func TestStockLedger_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	ledger := NewStockLedger()

	if err := ledger.SetStock(ctx, "book-1", 1); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	_, err := ledger.Reserve(ctx, "book-1", 2)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected *InsufficientStockError, got %T", err)
	}
	if stockErr.ProductID != "book-1" || stockErr.Available != 1 || stockErr.Requested != 2 {
		t.Fatalf("unexpected error details: %+v", stockErr)
	}

	// Неудачный резерв не трогает остаток.
	available, _ := ledger.Available(ctx, "book-1")
	if available != 1 {
		t.Fatalf("available: got %d, want 1", available)
	}
}

func TestStockLedger_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	ledger := NewStockLedger()

	if _, err := ledger.Reserve(ctx, "ghost", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if err := ledger.Release(ctx, "ghost-reservation"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

// N конкурентных резервов по 1 единице при остатке S дают ровно min(N, S)
// успехов; остаток никогда не уходит в минус.
func TestStockLedger_NoOversellUnderConcurrency(t *testing.T) {
	const (
		stock   = int32(7)
		workers = 50
	)

	ctx := context.Background()
	ledger := NewStockLedger()
	if err := ledger.SetStock(ctx, "book-1", stock); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int32
		failed    int32
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(ctx, "book-1", 1)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				failed++
			default:
				t.Errorf("unexpected reserve error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != stock {
		t.Fatalf("succeeded: got %d, want %d", succeeded, stock)
	}
	if failed != workers-stock {
		t.Fatalf("failed: got %d, want %d", failed, workers-stock)
	}

	available, _ := ledger.Available(ctx, "book-1")
	if available != 0 {
		t.Fatalf("available: got %d, want 0", available)
	}
}
