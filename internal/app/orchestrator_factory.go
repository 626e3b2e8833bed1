package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/messaging/kafka"
	"github.com/daralkutub/checkout/internal/metrics"
	"github.com/daralkutub/checkout/internal/service/checkout"
	"github.com/daralkutub/checkout/internal/service/payment"
	"github.com/daralkutub/checkout/internal/service/shipping"
)

// buildCheckoutService собирает оркестратор checkout из хранилищ, симулятора
// шлюза, калькулятора доставки и опционального Kafka producer.
func buildCheckoutService(
	cfg Config,
	deps *Dependencies,
	producer *kafka.Producer,
	logger *log.Entry,
) *checkout.Service {
	gateway := payment.NewGateway(payment.GatewayConfig{
		Latency:       cfg.Payment.Latency,
		DeclinedCards: cfg.Payment.DeclinedCards,
		TestMode:      cfg.Payment.TestMode,
	}, logger.WithField("component", "payment-gateway"))

	calculator := shipping.NewCalculator(shipping.Config{
		Currency:       cfg.Checkout.Currency,
		CostPerKgMinor: cfg.Shipping.CostPerKgMinor,
		FreeWeightKg:   cfg.Shipping.FreeWeightKg,
	}, logger.WithField("component", "shipping-calculator"))

	return checkout.NewService(checkout.Deps{
		Orders:      deps.Orders,
		Payments:    deps.Payments,
		Idempotency: deps.Idempotency,
		Stock:       deps.Stock,
		Shipping:    calculator,
		Gateway:     gateway,
		Producer:    producer,
		Metrics:     metrics.NewCheckoutMetrics(),
		Logger:      logger.WithField("component", "checkout"),
	}, checkout.Config{
		Currency:       cfg.Checkout.Currency,
		TaxRateBP:      cfg.Checkout.TaxRateBP,
		IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		Retry: checkout.RetryConfig{
			MaxAttempts:    cfg.Payment.MaxAttempts,
			InitialDelay:   cfg.Payment.InitialDelay,
			MaxDelay:       cfg.Payment.MaxDelay,
			BackoffFactor:  cfg.Payment.BackoffFactor,
			AttemptTimeout: cfg.Payment.AttemptTimeout,
		},
	})
}
