package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
	"github.com/daralkutub/checkout/internal/storage/memory"
	"github.com/daralkutub/checkout/internal/storage/postgres"
	"github.com/daralkutub/checkout/internal/storage/redis"
)

// Dependencies — собранные хранилища сервиса. Close освобождает внешние
// подключения в обратном порядке создания.
type Dependencies struct {
	Orders      domain.OrderRepository
	Payments    domain.PaymentRepository
	Idempotency domain.IdempotencyRepository
	Stock       domain.StockLedger

	pgStore     *postgres.Store
	redisLedger *redis.StockLedger
	logger      *log.Entry
}

// NewDependencies собирает хранилища по конфигурации. Для postgres применяются
// миграции; для redis проверяется доступность.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{logger: logger}

	switch cfg.Storage.Backend {
	case StorageBackendPostgres:
		store, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		deps.pgStore = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		deps.Stock = postgres.NewStockLedger(store)
		logger.Info("postgres storage initialized")

	case StorageBackendMemory:
		deps.Orders = memory.NewOrderRepository()
		deps.Payments = memory.NewPaymentRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()
		deps.Stock = memory.NewStockLedger()
		logger.Info("in-memory storage initialized")

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}

	// Ledger остатков можно вынести в Redis независимо от основного хранилища.
	if cfg.Stock.Backend == StockBackendRedis {
		ledger, err := redis.NewStockLedger(ctx, redis.Options{
			Addr:     cfg.Stock.RedisAddr,
			Password: cfg.Stock.RedisPassword,
			DB:       cfg.Stock.RedisDB,
			PoolSize: cfg.Stock.RedisPoolSize,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis stock ledger: %w", err)
		}
		deps.redisLedger = ledger
		deps.Stock = ledger
		logger.WithField("addr", cfg.Stock.RedisAddr).Info("redis stock ledger initialized")
	}

	return deps, nil
}

// PingStorage проверяет доступность внешних хранилищ; для памяти всегда nil.
func (d *Dependencies) PingStorage(ctx context.Context) error {
	if d.pgStore != nil {
		if err := d.pgStore.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if d.redisLedger != nil {
		if err := d.redisLedger.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close освобождает внешние подключения.
func (d *Dependencies) Close() {
	if d.redisLedger != nil {
		if err := d.redisLedger.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close redis stock ledger")
		}
	}
	if d.pgStore != nil {
		if err := d.pgStore.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
