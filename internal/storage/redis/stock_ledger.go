// Package redis реализует StockLedger поверх Redis. Остатки хранятся как
// строки-счётчики, резервы — как хэши; атомарность резерва и возврата
// обеспечивают Lua-скрипты.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/daralkutub/checkout/internal/domain"
)

const (
	stockKeyPrefix       = "stock:"
	reservationKeyPrefix = "resv:"
)

// Проверка остатка и списание выполняются одним скриптом: между ними не может
// вклиниться конкурирующий резерв.
var reserveScript = redis.NewScript(`
local qty = redis.call('GET', KEYS[1])
if not qty then
  return {-1, 0}
end
qty = tonumber(qty)
local want = tonumber(ARGV[1])
if qty < want then
  return {0, qty}
end
redis.call('DECRBY', KEYS[1], want)
redis.call('HSET', KEYS[2], 'product_id', ARGV[2], 'qty', ARGV[1], 'status', 'reserved')
return {1, qty - want}
`)

// Возврат условен по статусу: повторный release того же резерва — no-op.
var releaseScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= 'reserved' then
  return 0
end
local qty = redis.call('HGET', KEYS[1], 'qty')
redis.call('HSET', KEYS[1], 'status', 'released')
redis.call('INCRBY', KEYS[2], qty)
return 1
`)

// Options настраивает подключение к Redis.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// StockLedger — реализация domain.StockLedger поверх Redis.
type StockLedger struct {
	client *redis.Client
}

// NewStockLedger создаёт подключение и проверяет доступность Redis.
func NewStockLedger(ctx context.Context, opts Options) (*StockLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &StockLedger{client: client}, nil
}

// NewStockLedgerWithClient оборачивает готовый клиент; владение клиентом
// остаётся за вызывающим.
func NewStockLedgerWithClient(client *redis.Client) *StockLedger {
	return &StockLedger{client: client}
}

func (l *StockLedger) Reserve(ctx context.Context, productID string, qty int32) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, domain.ErrItemQtyInvalid
	}

	reservationID := uuid.NewString()
	keys := []string{stockKeyPrefix + productID, reservationKeyPrefix + reservationID}

	raw, err := reserveScript.Run(ctx, l.client, keys, qty, productID).Slice()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("run reserve script: %w", err)
	}
	if len(raw) != 2 {
		return domain.Reservation{}, fmt.Errorf("unexpected reserve script reply: %v", raw)
	}

	outcome, ok := raw[0].(int64)
	if !ok {
		return domain.Reservation{}, fmt.Errorf("unexpected reserve script outcome: %v", raw[0])
	}
	switch outcome {
	case -1:
		return domain.Reservation{}, domain.ErrProductNotFound
	case 0:
		available, _ := raw[1].(int64)
		return domain.Reservation{}, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: int32(available),
		}
	}

	return domain.Reservation{
		ID:        reservationID,
		ProductID: productID,
		Qty:       qty,
		Status:    domain.ReservationStatusReserved,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (l *StockLedger) Release(ctx context.Context, reservationID string) error {
	resvKey := reservationKeyPrefix + reservationID

	productID, err := l.client.HGet(ctx, resvKey, "product_id").Result()
	if err != nil {
		if err == redis.Nil {
			return domain.ErrReservationNotFound
		}
		return fmt.Errorf("load reservation: %w", err)
	}

	keys := []string{resvKey, stockKeyPrefix + productID}
	outcome, err := releaseScript.Run(ctx, l.client, keys).Int64()
	if err != nil {
		return fmt.Errorf("run release script: %w", err)
	}
	if outcome == -1 {
		return domain.ErrReservationNotFound
	}

	return nil
}

func (l *StockLedger) Available(ctx context.Context, productID string) (int32, error) {
	qty, err := l.client.Get(ctx, stockKeyPrefix+productID).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("get stock: %w", err)
	}

	return int32(qty), nil
}

func (l *StockLedger) SetStock(ctx context.Context, productID string, qty int32) error {
	if qty < 0 {
		return domain.ErrItemQtyInvalid
	}

	if err := l.client.Set(ctx, stockKeyPrefix+productID, int64(qty), 0).Err(); err != nil {
		return fmt.Errorf("set stock: %w", err)
	}

	return nil
}

// Ping проверяет доступность Redis; используется health-check'ом.
func (l *StockLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close закрывает подключение к Redis.
func (l *StockLedger) Close() error {
	return l.client.Close()
}

var _ domain.StockLedger = (*StockLedger)(nil)
