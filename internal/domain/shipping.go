package domain

import "time"

// ShippingMethod идентифицирует способ доставки, который умеет оценивать калькулятор.
type ShippingMethod string

const (
	// ShippingMethodStandard — обычная курьерская доставка.
	ShippingMethodStandard ShippingMethod = "standard"
	// ShippingMethodExpress — ускоренная доставка.
	ShippingMethodExpress ShippingMethod = "express"
	// ShippingMethodPickup — самовывоз из магазина, всегда бесплатен.
	ShippingMethodPickup ShippingMethod = "pickup"
)

// ShippingMode уточняет, как была оценена доставка.
type ShippingMode string

const (
	// ShippingModeDigital — в корзине нет физических товаров, доставка не нужна.
	ShippingModeDigital ShippingMode = "digital"
	// ShippingModeCourier — доставка курьером по адресу.
	ShippingModeCourier ShippingMode = "courier"
	// ShippingModePickup — покупатель забирает заказ сам.
	ShippingModePickup ShippingMode = "pickup"
)

// Address — адрес доставки.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// Complete проверяет, что заполнены поля, без которых доставка невозможна.
func (a *Address) Complete() bool {
	return a != nil && a.Line1 != "" && a.City != "" && a.Country != ""
}

// ShippingQuote — результат оценки стоимости доставки.
type ShippingQuote struct {
	CostMinor     int64          `json:"cost_minor"`
	Currency      string         `json:"currency"`
	Mode          ShippingMode   `json:"mode"`
	Method        ShippingMethod `json:"method,omitempty"`
	EstimatedDays int32          `json:"estimated_days,omitempty"`
	TotalWeightKg float64        `json:"total_weight_kg,omitempty"`
}

// ShippingMethodInfo описывает способ доставки для выбора на стороне UI.
type ShippingMethodInfo struct {
	Method        ShippingMethod `json:"method"`
	Name          string         `json:"name"`
	BaseCostMinor int64          `json:"base_cost_minor"`
	EstimatedDays int32          `json:"estimated_days"`
}

// Shipping — запись доставки, принадлежащая заказу. Отсутствует у полностью
// цифровых заказов.
type Shipping struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Method    ShippingMethod `json:"method"`
	CostMinor int64          `json:"cost_minor"`
	Address   Address        `json:"address"`
	CreatedAt time.Time      `json:"created_at"`
}
