package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daralkutub/checkout/internal/domain"
)

// Коды терминальных отказов, сохраняемые в записи идемпотентности.
const (
	failureCodeValidation          = "validation"
	failureCodeInsufficientStock   = "insufficient_stock"
	failureCodeShippingUnavailable = "shipping_unavailable"
	failureCodePaymentFailed       = "payment_failed"
	failureCodeInternal            = "internal"
)

// executeIdempotent оборачивает сагу записью идемпотентности: повтор с тем же
// ключом и телом получает сохранённый терминальный результат вместо второго
// исполнения; другой хэш тела — конфликт; незавершённая обработка —
// ErrCheckoutInProgress.
func (s *Service) executeIdempotent(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if s.idempotency == nil {
		return s.execute(ctx, req)
	}

	hash, err := requestHash(req)
	if err != nil {
		return nil, fmt.Errorf("hash checkout request: %w", err)
	}

	ttlAt := time.Now().UTC().Add(s.idempotencyTTL)
	record, err := s.idempotency.CreateProcessing(req.IdempotencyKey, hash, ttlAt)
	switch {
	case err == nil:
		// Ключ наш, исполняем сагу и фиксируем исход.
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return s.replay(record)
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, fmt.Errorf("key %q: %w", req.IdempotencyKey, domain.ErrIdempotencyHashMismatch)
	default:
		return nil, fmt.Errorf("create idempotency record: %w", err)
	}

	result, execErr := s.execute(ctx, req)
	if execErr != nil {
		code, message, orderID := classifyFailure(execErr)
		if markErr := s.idempotency.MarkFailed(req.IdempotencyKey, code, message, orderID); markErr != nil {
			s.logger.WithError(markErr).WithField("idempotency_key", req.IdempotencyKey).
				Warn("failed to persist checkout failure for idempotency key")
		}
		return nil, execErr
	}

	response, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal checkout result: %w", marshalErr)
	}
	if markErr := s.idempotency.MarkDone(req.IdempotencyKey, response); markErr != nil {
		s.logger.WithError(markErr).WithField("idempotency_key", req.IdempotencyKey).
			Warn("failed to persist checkout result for idempotency key")
	}
	return result, nil
}

// replay воспроизводит сохранённый исход для повторного запроса.
func (s *Service) replay(record domain.IdempotencyRecord) (*domain.CheckoutResult, error) {
	switch record.Status {
	case domain.IdempotencyStatusProcessing:
		return nil, fmt.Errorf("key %q: %w", record.Key, domain.ErrCheckoutInProgress)
	case domain.IdempotencyStatusDone:
		var result domain.CheckoutResult
		if err := json.Unmarshal(record.Response, &result); err != nil {
			return nil, fmt.Errorf("decode cached checkout result: %w", err)
		}
		s.logger.WithField("idempotency_key", record.Key).Info("checkout result replayed from idempotency cache")
		return &result, nil
	case domain.IdempotencyStatusFailed:
		return nil, failureFromRecord(record)
	default:
		return nil, fmt.Errorf("idempotency record %q has unexpected status %q", record.Key, record.Status)
	}
}

// requestHash считает SHA-256 от канонизированного тела запроса. Сам ключ в
// хэш не входит: он адресует запись, а не содержимое.
func requestHash(req domain.CheckoutRequest) (string, error) {
	req.IdempotencyKey = ""
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// failureCode сводит ошибку саги к метке причины для метрик и событий.
func failureCode(err error) string {
	code, _, _ := classifyFailure(err)
	return code
}

// classifyFailure раскладывает ошибку саги на код, сообщение и заказ, к
// которому относится отказ. Для отказа платежа сообщение содержит только
// причину: полный текст восстанавливается при повторе из PaymentFailedError.
func classifyFailure(err error) (code, message, orderID string) {
	message = err.Error()
	switch {
	case errors.Is(err, domain.ErrValidation):
		return failureCodeValidation, message, ""
	case errors.Is(err, domain.ErrInsufficientStock):
		return failureCodeInsufficientStock, message, ""
	case errors.Is(err, domain.ErrShippingUnavailable):
		return failureCodeShippingUnavailable, message, ""
	case errors.Is(err, domain.ErrPaymentFailed):
		var failure *domain.PaymentFailedError
		if errors.As(err, &failure) {
			return failureCodePaymentFailed, failure.Reason, failure.OrderID
		}
		return failureCodePaymentFailed, message, ""
	default:
		return failureCodeInternal, message, ""
	}
}

// failureFromRecord восстанавливает типизированную ошибку из failed-записи,
// чтобы повтор получил тот же класс отказа, что и оригинальный запрос.
func failureFromRecord(record domain.IdempotencyRecord) error {
	switch record.FailureCode {
	case failureCodeInsufficientStock:
		return fmt.Errorf("%s: %w", record.FailureMessage, domain.ErrInsufficientStock)
	case failureCodeShippingUnavailable:
		return fmt.Errorf("%s: %w", record.FailureMessage, domain.ErrShippingUnavailable)
	case failureCodePaymentFailed:
		return &domain.PaymentFailedError{OrderID: record.FailureOrderID, Reason: record.FailureMessage}
	case failureCodeValidation:
		return fmt.Errorf("%s: %w", record.FailureMessage, domain.ErrValidation)
	default:
		return fmt.Errorf("checkout previously failed: %s", record.FailureMessage)
	}
}
