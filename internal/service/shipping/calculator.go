package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
)

const (
	defaultCurrency       = "SAR"
	defaultCostPerKgMinor = 500
	defaultFreeWeightKg   = 1.0
)

// methodRate — тариф одного способа доставки.
type methodRate struct {
	name          string
	baseCostMinor int64
	estimatedDays int32
	// weightRated включает надбавку за вес сверх бесплатного порога.
	weightRated bool
}

// Config задаёт тарифы калькулятора доставки.
type Config struct {
	Currency string
	// CostPerKgMinor — надбавка за каждый килограмм сверх FreeWeightKg.
	CostPerKgMinor int64
	FreeWeightKg   float64
}

// DefaultConfig возвращает тарифы по умолчанию.
func DefaultConfig() Config {
	return Config{
		Currency:       defaultCurrency,
		CostPerKgMinor: defaultCostPerKgMinor,
		FreeWeightKg:   defaultFreeWeightKg,
	}
}

// Calculator оценивает стоимость доставки по фиксированной тарифной сетке.
// Полностью цифровые корзины получают нулевую стоимость в режиме digital,
// самовывоз всегда бесплатен.
type Calculator struct {
	config Config
	rates  map[domain.ShippingMethod]methodRate
	logger *log.Entry
}

// NewCalculator создаёт калькулятор с тарифами из config.
func NewCalculator(config Config, logger *log.Entry) *Calculator {
	if logger == nil {
		logger = log.New().WithField("component", "shipping-calculator")
	}
	if config.Currency == "" {
		config.Currency = defaultCurrency
	}
	if config.CostPerKgMinor <= 0 {
		config.CostPerKgMinor = defaultCostPerKgMinor
	}
	if config.FreeWeightKg <= 0 {
		config.FreeWeightKg = defaultFreeWeightKg
	}

	return &Calculator{
		config: config,
		rates: map[domain.ShippingMethod]methodRate{
			domain.ShippingMethodStandard: {
				name:          "Standard delivery",
				baseCostMinor: 1500,
				estimatedDays: 5,
				weightRated:   true,
			},
			domain.ShippingMethodExpress: {
				name:          "Express delivery",
				baseCostMinor: 3000,
				estimatedDays: 2,
				weightRated:   true,
			},
			domain.ShippingMethodPickup: {
				name:          "Store pickup",
				baseCostMinor: 0,
				estimatedDays: 0,
			},
		},
		logger: logger,
	}
}

// Quote считает стоимость доставки для корзины. Для корзины без физических
// товаров возвращает нулевую стоимость, не требуя ни адреса, ни метода.
func (c *Calculator) Quote(items []domain.CheckoutItem, address *domain.Address, method domain.ShippingMethod) (domain.ShippingQuote, error) {
	weight := physicalWeightKg(items)
	if !hasPhysical(items) {
		return domain.ShippingQuote{
			CostMinor: 0,
			Currency:  c.config.Currency,
			Mode:      domain.ShippingModeDigital,
		}, nil
	}

	rate, ok := c.rates[method]
	if !ok {
		return domain.ShippingQuote{}, fmt.Errorf("method %q: %w", method, domain.ErrShippingUnavailable)
	}

	if method == domain.ShippingMethodPickup {
		return domain.ShippingQuote{
			CostMinor:     0,
			Currency:      c.config.Currency,
			Mode:          domain.ShippingModePickup,
			Method:        method,
			TotalWeightKg: weight,
		}, nil
	}

	if !address.Complete() {
		return domain.ShippingQuote{}, fmt.Errorf("incomplete address: %w", domain.ErrShippingUnavailable)
	}

	cost := decimal.NewFromInt(rate.baseCostMinor)
	if rate.weightRated {
		cost = cost.Add(c.weightSurchargeMinor(weight))
	}

	quote := domain.ShippingQuote{
		CostMinor:     cost.Round(0).IntPart(),
		Currency:      c.config.Currency,
		Mode:          domain.ShippingModeCourier,
		Method:        method,
		EstimatedDays: rate.estimatedDays,
		TotalWeightKg: weight,
	}

	c.logger.WithFields(log.Fields{
		"method":     method,
		"weight_kg":  weight,
		"cost_minor": quote.CostMinor,
	}).Debug("shipping quote calculated")

	return quote, nil
}

// AvailableMethods возвращает способы доставки, доступные для данной корзины.
// Для полностью цифровой корзины список пуст: доставка не нужна.
func (c *Calculator) AvailableMethods(address *domain.Address, items []domain.CheckoutItem) []domain.ShippingMethodInfo {
	if !hasPhysical(items) {
		return nil
	}

	methods := []domain.ShippingMethod{
		domain.ShippingMethodStandard,
		domain.ShippingMethodExpress,
		domain.ShippingMethodPickup,
	}

	infos := make([]domain.ShippingMethodInfo, 0, len(methods))
	for _, method := range methods {
		// Курьерские способы требуют полного адреса, самовывоз — нет.
		if method != domain.ShippingMethodPickup && !address.Complete() {
			continue
		}
		rate := c.rates[method]
		infos = append(infos, domain.ShippingMethodInfo{
			Method:        method,
			Name:          rate.name,
			BaseCostMinor: rate.baseCostMinor,
			EstimatedDays: rate.estimatedDays,
		})
	}

	return infos
}

// weightSurchargeMinor считает надбавку за вес сверх бесплатного порога,
// округляя число платных килограммов вверх.
func (c *Calculator) weightSurchargeMinor(weightKg float64) decimal.Decimal {
	billable := decimal.NewFromFloat(weightKg).Sub(decimal.NewFromFloat(c.config.FreeWeightKg))
	if billable.Sign() <= 0 {
		return decimal.Zero
	}
	return billable.Ceil().Mul(decimal.NewFromInt(c.config.CostPerKgMinor))
}

func hasPhysical(items []domain.CheckoutItem) bool {
	for _, item := range items {
		if item.Type.StockManaged() {
			return true
		}
	}
	return false
}

func physicalWeightKg(items []domain.CheckoutItem) float64 {
	var total float64
	for _, item := range items {
		if !item.Type.StockManaged() {
			continue
		}
		total += item.WeightKg * float64(item.Qty)
	}
	return total
}

var _ domain.ShippingCalculator = (*Calculator)(nil)
