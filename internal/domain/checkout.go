package domain

// CustomerInfo — контактные данные покупателя; обязательны и для гостевого заказа.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CheckoutItem — позиция корзины в момент оформления. Цена фиксируется на
// момент запроса, дальнейшие изменения каталога заказ не затрагивают.
type CheckoutItem struct {
	ProductID      string      `json:"product_id"`
	Title          string      `json:"title"`
	Type           ProductType `json:"type"`
	Qty            int32       `json:"qty"`
	UnitPriceMinor int64       `json:"unit_price_minor"`
	// WeightKg участвует в расчёте доставки; для цифровых товаров игнорируется.
	WeightKg float64 `json:"weight_kg,omitempty"`
}

// CheckoutRequest — входной запрос оформления заказа. Не персистится.
type CheckoutRequest struct {
	// CustomerID пуст для гостевого заказа.
	CustomerID string         `json:"customer_id,omitempty"`
	Customer   CustomerInfo   `json:"customer"`
	Items      []CheckoutItem `json:"items"`
	// ShippingAddress обязателен, если в корзине есть физический товар.
	ShippingAddress *Address       `json:"shipping_address,omitempty"`
	ShippingMethod  ShippingMethod `json:"shipping_method,omitempty"`
	PaymentMethod   PaymentMethod  `json:"payment_method"`
	PaymentDetails  PaymentDetails `json:"payment_details,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	// IdempotencyKey защищает от повторного исполнения при ретраях клиента.
	// Обычно приходит в заголовке Idempotency-Key и проставляется транспортом.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// HasPhysicalItems сообщает, есть ли в корзине хотя бы один физический товар.
func (r *CheckoutRequest) HasPhysicalItems() bool {
	for _, item := range r.Items {
		if item.Type.StockManaged() {
			return true
		}
	}
	return false
}

// SubtotalMinor считает сумму позиций корзины.
func (r *CheckoutRequest) SubtotalMinor() int64 {
	var sum int64
	for _, item := range r.Items {
		sum += int64(item.Qty) * item.UnitPriceMinor
	}
	return sum
}

// Validate проверяет запрос до любых побочных эффектов и возвращает список замечаний.
func (r *CheckoutRequest) Validate() []error {
	var errs []error

	if r.Customer.Name == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if r.Customer.Email == "" {
		errs = append(errs, ErrCustomerEmailRequired)
	}
	if r.Customer.Phone == "" {
		errs = append(errs, ErrCustomerPhoneRequired)
	}
	if len(r.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range r.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if !item.Type.Valid() {
			errs = append(errs, ErrProductTypeInvalid)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if !r.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if r.HasPhysicalItems() {
		if !r.ShippingAddress.Complete() {
			errs = append(errs, ErrShippingAddressRequired)
		}
		if r.ShippingMethod == "" {
			errs = append(errs, ErrShippingMethodRequired)
		}
	}

	return errs
}

// CheckoutResult — агрегат, который получает вызывающая сторона при успешном
// оформлении. Частично успешных ответов не бывает.
type CheckoutResult struct {
	Order         Order         `json:"order"`
	Items         []OrderItem   `json:"items"`
	Payment       Payment       `json:"payment"`
	PaymentResult GatewayResult `json:"payment_result"`
	Shipping      *Shipping     `json:"shipping,omitempty"`
}
