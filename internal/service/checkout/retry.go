package checkout

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
)

// RetryConfig задаёт политику повторов обращения к платёжному шлюзу.
// Повторяются только временные ошибки (таймаут, недоступность); отклонение
// платежа повтором не является.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// AttemptTimeout ограничивает каждую отдельную попытку.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig возвращает политику повторов по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		BackoffFactor:  2.0,
		AttemptTimeout: 5 * time.Second,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 2.0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Second
	}
	return c
}

// processWithRetry проводит платёж через шлюз с ограниченным числом повторов
// и экспоненциальной задержкой. Блокировки склада в этот момент не удерживаются.
func (s *Service) processWithRetry(ctx context.Context, payment domain.Payment, details domain.PaymentDetails) (domain.GatewayResult, error) {
	config := s.retry
	delay := config.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, config.AttemptTimeout)
		result, err := s.gateway.Process(attemptCtx, payment, details)
		cancel()

		if err == nil {
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"payment_id": payment.ID,
					"attempt":    attempt,
				}).Info("payment succeeded after retry")
			}
			return result, nil
		}

		lastErr = err
		if !domain.IsRetryablePaymentError(err) {
			return domain.GatewayResult{}, err
		}

		if attempt < config.MaxAttempts {
			if s.metrics != nil {
				s.metrics.RecordPaymentRetry()
			}
			s.logger.WithError(err).WithFields(log.Fields{
				"payment_id": payment.ID,
				"attempt":    attempt,
				"delay":      delay,
			}).Warn("transient gateway error, retrying payment")

			select {
			case <-ctx.Done():
				return domain.GatewayResult{}, fmt.Errorf("payment retry interrupted: %w", ctx.Err())
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	s.logger.WithError(lastErr).WithFields(log.Fields{
		"payment_id":   payment.ID,
		"max_attempts": config.MaxAttempts,
	}).Error("payment failed after all retry attempts")

	return domain.GatewayResult{}, fmt.Errorf("gateway failed after %d attempts: %w", config.MaxAttempts, lastErr)
}
