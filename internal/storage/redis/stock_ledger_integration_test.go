package redis

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

func openRedisLedgerForIntegrationTest(t *testing.T) *StockLedger {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("CHECKOUT_REDIS_TEST_ADDR"))
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("CHECKOUT_REDIS_ADDR"))
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ledger, err := NewStockLedger(ctx, Options{Addr: addr})
	if err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	t.Cleanup(func() {
		_ = ledger.Close()
	})

	if err := ledger.client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis test db: %v", err)
	}

	return ledger
}

func TestStockLedger_RedisReserveRelease(t *testing.T) {
	ledger := openRedisLedgerForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ledger.SetStock(ctx, "prod-1", 5); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	reservation, err := ledger.Reserve(ctx, "prod-1", 3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reservation.ProductID != "prod-1" || reservation.Qty != 3 {
		t.Fatalf("unexpected reservation: %+v", reservation)
	}
	if reservation.Status != domain.ReservationStatusReserved {
		t.Fatalf("unexpected reservation status: %s", reservation.Status)
	}

	available, err := ledger.Available(ctx, "prod-1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 2 {
		t.Fatalf("expected 2 available, got %d", available)
	}

	var insufficient *domain.InsufficientStockError
	if _, err := ledger.Reserve(ctx, "prod-1", 3); !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 2 || insufficient.Requested != 3 {
		t.Fatalf("unexpected shortfall details: %+v", insufficient)
	}

	if err := ledger.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Повторный release — no-op, возврат не задваивается.
	if err := ledger.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("repeat release: %v", err)
	}

	available, err = ledger.Available(ctx, "prod-1")
	if err != nil {
		t.Fatalf("available after release: %v", err)
	}
	if available != 5 {
		t.Fatalf("expected 5 available after release, got %d", available)
	}
}

func TestStockLedger_RedisErrors(t *testing.T) {
	ledger := openRedisLedgerForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := ledger.Reserve(ctx, "missing-product", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := ledger.Available(ctx, "missing-product"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on available, got %v", err)
	}
	if err := ledger.Release(ctx, "missing-reservation"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
	if _, err := ledger.Reserve(ctx, "prod-1", -1); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid, got %v", err)
	}
	if err := ledger.SetStock(ctx, "prod-1", -1); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid on set, got %v", err)
	}
}

func TestStockLedger_RedisNoOversellUnderConcurrency(t *testing.T) {
	ledger := openRedisLedgerForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ledger.SetStock(ctx, "prod-hot", 7); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	const workers = 20

	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(ctx, "prod-hot", 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *domain.InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}
	if succeeded != 7 {
		t.Fatalf("expected exactly 7 successful reservations, got %d", succeeded)
	}

	available, err := ledger.Available(ctx, "prod-hot")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected 0 available, got %d", available)
	}
}
