// Package idempotency содержит фоновый sweeper, подчищающий просроченные
// записи идемпотентности, чтобы таблица ключей не росла бесконечно.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
)

const (
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepBatchSize = 500

	// defaultMaxBatches ограничивает один проход: при большом бэклоге
	// sweeper не держит базу занятой дольше необходимого, остаток
	// заберёт следующий тик.
	defaultMaxBatches = 50
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_idempotency_sweep_runs_total",
		Help: "Total number of idempotency sweep runs grouped by result.",
	}, []string{"result"})
	sweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_idempotency_sweep_deleted_total",
		Help: "Total number of expired idempotency records deleted by the sweeper.",
	})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_idempotency_sweep_duration_seconds",
		Help:    "Duration of a single idempotency sweep run.",
		Buckets: prometheus.DefBuckets,
	})
)

// Config задаёт параметры sweeper-а. Нулевые поля получают значения
// по умолчанию в NewSweeper.
type Config struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	// MaxBatches — предел числа порций за один проход, 0 означает
	// значение по умолчанию.
	MaxBatches int
}

// Sweeper периодически удаляет просроченные записи идемпотентности
// порциями, чтобы не блокировать таблицу одним большим DELETE.
type Sweeper struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	maxBatches int
}

// NewSweeper создаёт sweeper поверх репозитория идемпотентности.
func NewSweeper(repo domain.IdempotencyRepository, cfg Config) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "idempotency-sweeper")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatchSize
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = defaultMaxBatches
	}

	return &Sweeper{
		repo:       repo,
		logger:     logger,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		maxBatches: cfg.MaxBatches,
	}
}

// Run выполняет проход сразу и затем по тикеру до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.repo == nil {
		s.logger.Warn("idempotency sweeper is disabled: repo is nil")
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	started := time.Now()
	deleted, err := s.SweepOnce(ctx, started.UTC())
	sweepDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweepRunsTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("idempotency sweep failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("idempotency sweep completed")
	}
}

// SweepOnce удаляет записи с истёкшим TTL порциями batchSize, но не более
// maxBatches порций за вызов. Возвращает число удалённых записей.
func (s *Sweeper) SweepOnce(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	totalDeleted := 0
	for batch := 0; batch < s.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := s.repo.DeleteExpired(before, s.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			sweepDeletedTotal.Add(float64(deleted))
		}

		if deleted < s.batchSize {
			return totalDeleted, nil
		}
	}

	s.logger.WithFields(log.Fields{
		"deleted":     totalDeleted,
		"max_batches": s.maxBatches,
	}).Warn("idempotency sweep hit the batch cap, backlog remains")
	return totalDeleted, nil
}
