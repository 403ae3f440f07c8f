package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/app/coordinator"
	"campusmarket/internal/app/dto"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/money"
)

type OrderHandler struct {
	Coordinator *coordinator.Coordinator
	// Currency applies when a request names an amount without one.
	Currency string
	Logger   *slog.Logger
}

type createOrderRequest struct {
	ListingID string `json:"listing_id"`
	SellerID  string `json:"seller_id"`
	// AmountCents is optional; the listing price applies when omitted.
	AmountCents *int64 `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h OrderHandler) Create(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	var amount money.Money
	if req.AmountCents != nil {
		currency := strings.TrimSpace(req.Currency)
		if currency == "" {
			currency = h.Currency
		}
		m, err := money.New(*req.AmountCents, currency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amount = m
	}
	order, err := h.Coordinator.CreateOrder(c.Request.Context(), s, coordinator.CreateOrderRequest{
		ListingID:      strings.TrimSpace(req.ListingID),
		SellerID:       strings.TrimSpace(req.SellerID),
		Amount:         amount,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, h.Logger, "create order", err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOrder(order))
}

func (h OrderHandler) List(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	orders, err := h.Coordinator.ListOrders(c.Request.Context(), s)
	if err != nil {
		respondError(c, h.Logger, "list orders", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderList(orders))
}

func (h OrderHandler) Get(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	order, err := h.Coordinator.GetOrder(c.Request.Context(), s, domainorders.OrderID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, "get order", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderSummary(order))
}

func (h OrderHandler) UpdateStatus(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	status, err := domainorders.ParseStatus(req.Status)
	if err != nil {
		respondError(c, h.Logger, "update order status", err)
		return
	}
	order, err := h.Coordinator.UpdateOrderStatus(c.Request.Context(), s, domainorders.OrderID(c.Param("id")), status)
	if err != nil {
		respondError(c, h.Logger, "update order status", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrder(order))
}

var _ OrderHTTP = OrderHandler{}
