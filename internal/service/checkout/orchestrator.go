package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
	"github.com/daralkutub/checkout/internal/messaging/kafka"
	"github.com/daralkutub/checkout/internal/metrics"
)

const (
	defaultCurrency       = "SAR"
	defaultIdempotencyTTL = 24 * time.Hour
)

// Deps — зависимости оркестратора. Producer и Metrics опциональны:
// оформление заказа никогда не падает из-за наблюдаемости.
type Deps struct {
	Orders      domain.OrderRepository
	Payments    domain.PaymentRepository
	Idempotency domain.IdempotencyRepository
	Stock       domain.StockLedger
	Shipping    domain.ShippingCalculator
	Gateway     domain.PaymentGateway
	Producer    *kafka.Producer
	Metrics     *metrics.CheckoutMetrics
	Logger      *log.Entry
}

// Config настраивает денежные параметры оркестратора.
type Config struct {
	Currency string
	// TaxRateBP — ставка налога в базисных пунктах (1500 = 15%). Налог
	// считается от суммы позиций без стоимости доставки.
	TaxRateBP int64
	// IdempotencyTTL — срок жизни записей идемпотентности.
	IdempotencyTTL time.Duration
	Retry          RetryConfig
}

// Service реализует сагу оформления заказа: резерв склада → оценка доставки →
// создание заказа и платежа → проведение платежа → подтверждение либо
// синхронная компенсация в обратном порядке.
type Service struct {
	orders      domain.OrderRepository
	payments    domain.PaymentRepository
	idempotency domain.IdempotencyRepository
	stock       domain.StockLedger
	shipping    domain.ShippingCalculator
	gateway     domain.PaymentGateway
	producer    *kafka.Producer
	metrics     *metrics.CheckoutMetrics
	logger      *log.Entry

	currency       string
	taxRateBP      int64
	idempotencyTTL time.Duration
	retry          RetryConfig
}

// NewService создаёт оркестратор checkout.
func NewService(deps Deps, config Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	if config.Currency == "" {
		config.Currency = defaultCurrency
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = defaultIdempotencyTTL
	}

	return &Service{
		orders:         deps.Orders,
		payments:       deps.Payments,
		idempotency:    deps.Idempotency,
		stock:          deps.Stock,
		shipping:       deps.Shipping,
		gateway:        deps.Gateway,
		producer:       deps.Producer,
		metrics:        deps.Metrics,
		logger:         logger,
		currency:       config.Currency,
		taxRateBP:      config.TaxRateBP,
		idempotencyTTL: config.IdempotencyTTL,
		retry:          config.Retry.normalized(),
	}
}

// CreateOrderWithCheckout оформляет заказ за один запрос. Ответ либо полный
// {Order, Items, Payment, Shipping?}, либо типизированная ошибка после
// полной компенсации; частично успешных исходов не бывает.
func (s *Service) CreateOrderWithCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if issues := req.Validate(); len(issues) > 0 {
		// Ошибка валидации не кэшируется: побочных эффектов ещё не было.
		return nil, &domain.ValidationError{Issues: issues}
	}

	if req.IdempotencyKey == "" {
		return s.execute(ctx, req)
	}
	return s.executeIdempotent(ctx, req)
}

// GetOrder возвращает заказ с позициями и доставкой.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(id)
}

// ListOrders возвращает заказы клиента, от новых к старым.
func (s *Service) ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(customerID, limit)
}

// GetPayment возвращает платёж заказа.
func (s *Service) GetPayment(ctx context.Context, orderID string) (domain.Payment, error) {
	return s.payments.GetByOrderID(orderID)
}

// ShippingMethods возвращает доступные способы доставки для корзины.
func (s *Service) ShippingMethods(address *domain.Address, items []domain.CheckoutItem) []domain.ShippingMethodInfo {
	return s.shipping.AvailableMethods(address, items)
}

// execute проходит шаги саги для уже провалидированного запроса.
func (s *Service) execute(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() {
			s.metrics.RecordCheckoutDuration(time.Since(start))
			s.metrics.RecordCheckoutFinished()
		}()
	}

	orderID := uuid.NewString()
	logger := s.logger.WithField("order_id", orderID)

	s.publishEvent(kafka.EventTypeCheckoutStarted, orderID, req.CustomerID, map[string]interface{}{
		"items_count": len(req.Items),
	})

	// Шаг 1: резерв физических позиций. Первый недостаток остатка снимает
	// уже взятые резервы в обратном порядке.
	reservations, err := s.reserveStock(ctx, req)
	if err != nil {
		s.failCheckout(orderID, req.CustomerID, err)
		return nil, err
	}

	// Шаг 2: оценка доставки. Ошибка компенсирует резервы.
	quote, err := s.quoteShipping(req)
	if err != nil {
		s.releaseReservations(ctx, reservations)
		s.failCheckout(orderID, req.CustomerID, err)
		return nil, err
	}

	// Шаг 3: суммы заказа. Налог считается от подытога позиций.
	subtotal := req.SubtotalMinor()
	tax := s.taxMinor(subtotal)
	total := subtotal + quote.CostMinor + tax

	// Шаг 4: заказ pending/pending вместе с позициями и доставкой.
	order := s.buildOrder(orderID, req, quote, subtotal, tax, total)
	if err := s.orders.Create(order); err != nil {
		s.releaseReservations(ctx, reservations)
		wrapped := fmt.Errorf("create order: %w", err)
		s.failCheckout(orderID, req.CustomerID, wrapped)
		return nil, wrapped
	}

	// Шаг 5: платёж pending.
	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		CustomerID:  req.CustomerID,
		AmountMinor: total,
		Currency:    s.currency,
		Method:      req.PaymentMethod,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.CreatedAt,
	}
	if err := s.payments.Create(payment); err != nil {
		s.compensate(ctx, orderID, reservations)
		wrapped := fmt.Errorf("create payment: %w", err)
		s.failCheckout(orderID, req.CustomerID, wrapped)
		return nil, wrapped
	}

	// Шаг 6: проведение платежа. Резервы в этот момент уже сняты с замков:
	// шлюз может занимать секунды.
	stepStart := time.Now()
	result, gatewayErr := s.processWithRetry(ctx, payment, req.PaymentDetails)
	if s.metrics != nil {
		s.metrics.RecordStepDuration("process_payment", time.Since(stepStart))
	}

	if gatewayErr != nil || !result.Success {
		reason := "payment declined"
		if gatewayErr != nil {
			reason = gatewayErr.Error()
		} else if result.Message != "" {
			reason = result.Message
		}

		if err := s.payments.UpdateStatus(payment.ID, domain.PaymentStatusFailed, "", result.Response); err != nil {
			logger.WithError(err).Error("failed to persist payment failure")
		}
		s.compensate(ctx, orderID, reservations)

		failure := &domain.PaymentFailedError{OrderID: orderID, Reason: reason}
		s.publishEvent(kafka.EventTypePaymentFailed, orderID, req.CustomerID, map[string]interface{}{
			"reason": reason,
		})
		s.failCheckout(orderID, req.CustomerID, failure)
		return nil, failure
	}

	// Шаг 7: подтверждение. Оплата при получении оставляет платёж в pending.
	if result.Deferred {
		s.publishEvent(kafka.EventTypePaymentDeferred, orderID, req.CustomerID, nil)
	} else {
		if err := s.payments.UpdateStatus(payment.ID, domain.PaymentStatusCompleted, result.TransactionID, result.Response); err != nil {
			logger.WithError(err).Error("failed to persist payment completion")
			s.compensate(ctx, orderID, reservations)
			s.failCheckout(orderID, req.CustomerID, err)
			return nil, fmt.Errorf("complete payment: %w", err)
		}
		if err := s.orders.UpdatePaymentStatus(orderID, domain.PaymentStatusCompleted); err != nil {
			logger.WithError(err).Error("failed to mirror payment status on order")
		}
		s.publishEvent(kafka.EventTypePaymentCompleted, orderID, req.CustomerID, map[string]interface{}{
			"transaction_id": result.TransactionID,
			"amount_minor":   total,
		})
	}

	if err := s.orders.UpdateStatus(orderID, domain.OrderStatusConfirmed); err != nil {
		// Средства уже списаны: снять резерв или отменить заказ нельзя, а
		// возврат платежа в ядре не предусмотрен. Заказ остаётся pending с
		// удержанным резервом до ручного разбора оператором.
		logger.WithError(err).WithFields(log.Fields{
			"payment_id":     payment.ID,
			"transaction_id": result.TransactionID,
		}).Error("payment captured but order unconfirmed, manual resolution required")
		return nil, fmt.Errorf("confirm order after captured payment: %w", err)
	}

	confirmed, err := s.orders.Get(orderID)
	if err != nil {
		return nil, fmt.Errorf("load confirmed order: %w", err)
	}
	finalPayment, err := s.payments.Get(payment.ID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutCompleted()
	}
	s.publishEvent(kafka.EventTypeCheckoutCompleted, orderID, req.CustomerID, map[string]interface{}{
		"total_minor": total,
		"deferred":    result.Deferred,
	})
	logger.WithFields(log.Fields{
		"total_minor": total,
		"deferred":    result.Deferred,
	}).Info("checkout completed")

	return &domain.CheckoutResult{
		Order:         confirmed,
		Items:         confirmed.Items,
		Payment:       finalPayment,
		PaymentResult: result,
		Shipping:      confirmed.Shipping,
	}, nil
}

// reserveStock берёт резерв по каждой физической позиции. При первом отказе
// уже взятые резервы снимаются в обратном порядке.
func (s *Service) reserveStock(ctx context.Context, req domain.CheckoutRequest) ([]domain.Reservation, error) {
	stepStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStepDuration("reserve_stock", time.Since(stepStart))
		}
	}()

	var taken []domain.Reservation
	for _, item := range req.Items {
		if !item.Type.StockManaged() {
			continue
		}

		reservation, err := s.stock.Reserve(ctx, item.ProductID, item.Qty)
		if err != nil {
			s.releaseReservations(ctx, taken)
			return nil, fmt.Errorf("reserve %s: %w", item.ProductID, err)
		}
		taken = append(taken, reservation)

		if s.metrics != nil {
			s.metrics.RecordStockReserved()
		}
		s.publishEvent(kafka.EventTypeStockReserved, "", req.CustomerID, map[string]interface{}{
			"product_id":     item.ProductID,
			"qty":            item.Qty,
			"reservation_id": reservation.ID,
		})
	}
	return taken, nil
}

func (s *Service) quoteShipping(req domain.CheckoutRequest) (domain.ShippingQuote, error) {
	stepStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStepDuration("quote_shipping", time.Since(stepStart))
		}
	}()

	quote, err := s.shipping.Quote(req.Items, req.ShippingAddress, req.ShippingMethod)
	if err != nil {
		return domain.ShippingQuote{}, fmt.Errorf("quote shipping: %w", err)
	}
	return quote, nil
}

// taxMinor считает налог от подытога в базисных пунктах, округляя к ближайшему.
func (s *Service) taxMinor(subtotalMinor int64) int64 {
	if s.taxRateBP <= 0 || subtotalMinor <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotalMinor).
		Mul(decimal.NewFromInt(s.taxRateBP)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}

func (s *Service) buildOrder(orderID string, req domain.CheckoutRequest, quote domain.ShippingQuote, subtotal, tax, total int64) domain.Order {
	now := time.Now().UTC()

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ID:              uuid.NewString(),
			OrderID:         orderID,
			ProductID:       item.ProductID,
			Title:           item.Title,
			UnitPriceMinor:  item.UnitPriceMinor,
			Qty:             item.Qty,
			TotalPriceMinor: int64(item.Qty) * item.UnitPriceMinor,
			CreatedAt:       now,
		})
	}

	var shipping *domain.Shipping
	if quote.Mode != domain.ShippingModeDigital {
		shipping = &domain.Shipping{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			Method:    quote.Method,
			CostMinor: quote.CostMinor,
			CreatedAt: now,
		}
		if req.ShippingAddress != nil {
			shipping.Address = *req.ShippingAddress
		}
	}

	return domain.Order{
		ID:                orderID,
		CustomerID:        req.CustomerID,
		CustomerName:      req.Customer.Name,
		CustomerEmail:     req.Customer.Email,
		CustomerPhone:     req.Customer.Phone,
		SubtotalMinor:     subtotal,
		ShippingCostMinor: quote.CostMinor,
		TaxMinor:          tax,
		TotalMinor:        total,
		Currency:          s.currency,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		Items:             items,
		Shipping:          shipping,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// compensate откатывает побочные эффекты неудавшегося checkout: резервы
// снимаются в обратном порядке, заказ отменяется, статус платежа зеркалится.
func (s *Service) compensate(ctx context.Context, orderID string, reservations []domain.Reservation) {
	s.releaseReservations(ctx, reservations)

	if err := s.orders.UpdatePaymentStatus(orderID, domain.PaymentStatusFailed); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to mirror payment failure on order")
	}
	if err := s.orders.UpdateStatus(orderID, domain.OrderStatusCancelled); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to cancel order during compensation")
	}
}

func (s *Service) releaseReservations(ctx context.Context, reservations []domain.Reservation) {
	for i := len(reservations) - 1; i >= 0; i-- {
		reservation := reservations[i]
		if err := s.stock.Release(ctx, reservation.ID); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"reservation_id": reservation.ID,
				"product_id":     reservation.ProductID,
			}).Warn("release reservation failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordStockReleased()
		}
		s.publishEvent(kafka.EventTypeStockReleased, "", "", map[string]interface{}{
			"product_id":     reservation.ProductID,
			"qty":            reservation.Qty,
			"reservation_id": reservation.ID,
		})
	}
}

func (s *Service) failCheckout(orderID, customerID string, err error) {
	if s.metrics != nil {
		s.metrics.RecordCheckoutFailed(failureCode(err))
	}
	s.publishEvent(kafka.EventTypeCheckoutFailed, orderID, customerID, map[string]interface{}{
		"reason": failureCode(err),
	})
	s.logger.WithError(err).WithField("order_id", orderID).Warn("checkout failed")
}

// publishEvent публикует событие в Kafka, если producer настроен.
// Сбой публикации не прерывает оформление заказа.
func (s *Service) publishEvent(eventType kafka.EventType, orderID, customerID string, metadata map[string]interface{}) {
	if s.producer == nil {
		return
	}

	event := kafka.NewCheckoutEvent(eventType, orderID, customerID, metadata)
	if err := s.producer.Publish(kafka.TopicCheckoutEvents, orderID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   orderID,
		}).Warn("failed to publish checkout event to kafka")
	}
}
