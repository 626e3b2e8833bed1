// Package http предоставляет REST API ядра checkout поверх gin.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/daralkutub/checkout/internal/domain"
	"github.com/daralkutub/checkout/internal/service/checkout"
)

// HeaderIdempotencyKey — заголовок, из которого транспорт берёт ключ
// идемпотентности и проставляет его в запрос.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler связывает HTTP-маршруты с сервисом checkout.
type Handler struct {
	service *checkout.Service
	logger  *log.Entry
}

// NewHandler создаёт HTTP-обработчик.
func NewHandler(service *checkout.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{service: service, logger: logger}
}

// Register вешает маршруты API на gin-роутер.
func (h *Handler) Register(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/checkout", h.createCheckout)
		api.GET("/orders/:id", h.getOrder)
		api.GET("/orders", h.listOrders)
		api.GET("/orders/:id/payment", h.getPayment)
		api.POST("/shipping/methods", h.shippingMethods)
	}
}

func (h *Handler) createCheckout(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.service.CreateOrderWithCheckout(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id query parameter is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	orders, err := h.service.ListOrders(c.Request.Context(), customerID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (h *Handler) getPayment(c *gin.Context) {
	payment, err := h.service.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// shippingMethodsRequest — корзина и адрес, для которых нужен список способов доставки.
type shippingMethodsRequest struct {
	Address *domain.Address       `json:"address,omitempty"`
	Items   []domain.CheckoutItem `json:"items"`
}

func (h *Handler) shippingMethods(c *gin.Context) {
	var req shippingMethodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	methods := h.service.ShippingMethods(req.Address, req.Items)
	c.JSON(http.StatusOK, gin.H{"methods": methods})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error()}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		issues := make([]string, 0, len(validation.Issues))
		for _, issue := range validation.Issues {
			issues = append(issues, issue.Error())
		}
		body["issues"] = issues
	}

	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		body["product_id"] = insufficient.ProductID
		body["requested"] = insufficient.Requested
		body["available"] = insufficient.Available
	}

	var paymentFailed *domain.PaymentFailedError
	if errors.As(err, &paymentFailed) {
		body["order_id"] = paymentFailed.OrderID
	}

	c.JSON(status, body)
}

// statusForError переводит типизированные ошибки ядра в HTTP-статусы.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIdempotencyHashMismatch),
		errors.Is(err, domain.ErrCheckoutInProgress),
		errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrShippingUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
