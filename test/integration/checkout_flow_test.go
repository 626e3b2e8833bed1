package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/daralkutub/checkout/internal/domain"
	"github.com/daralkutub/checkout/internal/service/checkout"
	"github.com/daralkutub/checkout/internal/service/payment"
	"github.com/daralkutub/checkout/internal/service/shipping"
	"github.com/daralkutub/checkout/internal/storage/memory"
	transport "github.com/daralkutub/checkout/internal/transport/http"
)

// CheckoutFlowTestSuite прогоняет полный цикл оформления заказа через HTTP API
// с in-memory хранилищами и симулятором платёжного шлюза.
type CheckoutFlowTestSuite struct {
	suite.Suite
	router   *gin.Engine
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	stock    domain.StockLedger
}

func (s *CheckoutFlowTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.orders = memory.NewOrderRepository()
	s.payments = memory.NewPaymentRepository()
	s.stock = memory.NewStockLedger()

	service := checkout.NewService(checkout.Deps{
		Orders:      s.orders,
		Payments:    s.payments,
		Idempotency: memory.NewIdempotencyRepository(),
		Stock:       s.stock,
		Shipping:    shipping.NewCalculator(shipping.DefaultConfig(), logger),
		Gateway:     payment.NewGateway(payment.GatewayConfig{TestMode: true}, logger),
		Logger:      logger,
	}, checkout.Config{
		TaxRateBP: 1500,
		Retry: checkout.RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   time.Millisecond,
			MaxDelay:       5 * time.Millisecond,
			BackoffFactor:  2.0,
			AttemptTimeout: time.Second,
		},
	})

	s.router = gin.New()
	transport.NewHandler(service, logger).Register(s.router)
}

func (s *CheckoutFlowTestSuite) postJSON(path string, body map[string]any, headers map[string]string) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)
	return recorder
}

func (s *CheckoutFlowTestSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)
	return recorder
}

func (s *CheckoutFlowTestSuite) checkoutBody() map[string]any {
	return map[string]any{
		"customer_id": "customer-1",
		"customer": map[string]any{
			"name":  "Huda",
			"email": "huda@example.com",
			"phone": "+966500000002",
		},
		"items": []map[string]any{
			{
				"product_id":       "atlas-1",
				"title":            "Printed Atlas",
				"type":             "physical",
				"qty":              2,
				"unit_price_minor": 3000,
				"weight_kg":        0.5,
			},
			{
				"product_id":       "ebook-1",
				"title":            "Go in Practice",
				"type":             "ebook",
				"qty":              1,
				"unit_price_minor": 4000,
			},
		},
		"shipping_address": map[string]any{
			"line1":   "12 King Fahd Rd",
			"city":    "Riyadh",
			"country": "SA",
		},
		"shipping_method": "standard",
		"payment_method":  "card",
		"payment_details": map[string]string{
			"card_number": "4111111111111111",
		},
	}
}

func (s *CheckoutFlowTestSuite) TestSuccessfulCheckoutFlow() {
	ctx := context.Background()
	require.NoError(s.T(), s.stock.SetStock(ctx, "atlas-1", 5))

	resp := s.postJSON("/api/v1/checkout", s.checkoutBody(), nil)
	require.Equal(s.T(), http.StatusCreated, resp.Code, resp.Body.String())

	var result domain.CheckoutResult
	require.NoError(s.T(), json.Unmarshal(resp.Body.Bytes(), &result))

	// subtotal 10000, доставка 1500, налог 15% от подытога = 1500.
	require.Equal(s.T(), int64(10000), result.Order.SubtotalMinor)
	require.Equal(s.T(), int64(1500), result.Order.ShippingCostMinor)
	require.Equal(s.T(), int64(1500), result.Order.TaxMinor)
	require.Equal(s.T(), int64(13000), result.Order.TotalMinor)
	require.Equal(s.T(), domain.OrderStatusConfirmed, result.Order.Status)
	require.Equal(s.T(), domain.PaymentStatusCompleted, result.Payment.Status)
	require.NotEmpty(s.T(), result.PaymentResult.TransactionID)
	require.NotNil(s.T(), result.Shipping)
	require.Len(s.T(), result.Items, 2)
	require.Empty(s.T(), result.Order.ValidateInvariants())

	// Склад уменьшился ровно на зарезервированное количество.
	available, err := s.stock.Available(ctx, "atlas-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(3), available)

	// Заказ и платёж читаются обратно через API.
	getResp := s.get("/api/v1/orders/" + result.Order.ID)
	require.Equal(s.T(), http.StatusOK, getResp.Code)

	payResp := s.get("/api/v1/orders/" + result.Order.ID + "/payment")
	require.Equal(s.T(), http.StatusOK, payResp.Code)
}

func (s *CheckoutFlowTestSuite) TestPaymentFailureCompensatesEverything() {
	ctx := context.Background()
	require.NoError(s.T(), s.stock.SetStock(ctx, "atlas-1", 5))

	body := s.checkoutBody()
	body["payment_details"] = map[string]string{"simulate": "decline"}

	resp := s.postJSON("/api/v1/checkout", body, nil)
	require.Equal(s.T(), http.StatusPaymentRequired, resp.Code, resp.Body.String())

	var payload struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(s.T(), json.Unmarshal(resp.Body.Bytes(), &payload))
	require.NotEmpty(s.T(), payload.OrderID)

	// Заказ отменён, платёж failed, резерв возвращён.
	order, err := s.orders.Get(payload.OrderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusCancelled, order.Status)
	require.Equal(s.T(), domain.PaymentStatusFailed, order.PaymentStatus)

	pay, err := s.payments.GetByOrderID(payload.OrderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.PaymentStatusFailed, pay.Status)

	available, err := s.stock.Available(ctx, "atlas-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(5), available)
}

func (s *CheckoutFlowTestSuite) TestInsufficientStockLeavesNoTrace() {
	ctx := context.Background()
	require.NoError(s.T(), s.stock.SetStock(ctx, "atlas-1", 1))

	resp := s.postJSON("/api/v1/checkout", s.checkoutBody(), nil)
	require.Equal(s.T(), http.StatusConflict, resp.Code, resp.Body.String())

	// Склад не тронут, заказов у клиента нет.
	available, err := s.stock.Available(ctx, "atlas-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(1), available)

	orders, err := s.orders.ListByCustomer("customer-1", 0)
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
}

func (s *CheckoutFlowTestSuite) TestIdempotentRetryReturnsSameOrder() {
	ctx := context.Background()
	require.NoError(s.T(), s.stock.SetStock(ctx, "atlas-1", 5))

	headers := map[string]string{transport.HeaderIdempotencyKey: "flow-key-1"}

	first := s.postJSON("/api/v1/checkout", s.checkoutBody(), headers)
	require.Equal(s.T(), http.StatusCreated, first.Code, first.Body.String())

	second := s.postJSON("/api/v1/checkout", s.checkoutBody(), headers)
	require.Equal(s.T(), http.StatusCreated, second.Code, second.Body.String())

	var firstResult, secondResult domain.CheckoutResult
	require.NoError(s.T(), json.Unmarshal(first.Body.Bytes(), &firstResult))
	require.NoError(s.T(), json.Unmarshal(second.Body.Bytes(), &secondResult))
	require.Equal(s.T(), firstResult.Order.ID, secondResult.Order.ID)
	require.Equal(s.T(), firstResult.Payment.ID, secondResult.Payment.ID)

	// Повтор не списал склад второй раз.
	available, err := s.stock.Available(ctx, "atlas-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(3), available)
}

func (s *CheckoutFlowTestSuite) TestCashOnDeliveryConfirmsWithPendingPayment() {
	ctx := context.Background()
	require.NoError(s.T(), s.stock.SetStock(ctx, "atlas-1", 5))

	body := s.checkoutBody()
	body["payment_method"] = "cash_on_delivery"
	delete(body, "payment_details")

	resp := s.postJSON("/api/v1/checkout", body, nil)
	require.Equal(s.T(), http.StatusCreated, resp.Code, resp.Body.String())

	var result domain.CheckoutResult
	require.NoError(s.T(), json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(s.T(), domain.OrderStatusConfirmed, result.Order.Status)
	require.Equal(s.T(), domain.PaymentStatusPending, result.Payment.Status)
	require.True(s.T(), result.PaymentResult.Deferred)
	require.Empty(s.T(), result.PaymentResult.TransactionID)
}

func TestCheckoutFlow(t *testing.T) {
	suite.Run(t, new(CheckoutFlowTestSuite))
}
