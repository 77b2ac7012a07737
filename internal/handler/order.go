package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/middleware"
	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
	"github.com/iliyamo/ecommerce-backend/internal/service"
)

// OrderHandler serves order creation, lookup and the admin lifecycle
// endpoints.
type OrderHandler struct {
	Orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{Orders: orders}
}

// ----- DTOs -----

type createOrderReq struct {
	ShippingAddress model.Address  `json:"shipping_address"`
	BillingAddress  *model.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`
	Notes           string         `json:"notes"`
}

type updateStatusReq struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"tracking_number"`
	Carrier        *string `json:"carrier"`
	InternalNotes  *string `json:"internal_notes"`
}

type updatePaymentReq struct {
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id"`
}

type orderItemResp struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	VariantSku   string          `json:"variant_sku,omitempty"`
	Size         string          `json:"size,omitempty"`
	Color        string          `json:"color,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
}

type orderResp struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress model.Address   `json:"shipping_address"`
	BillingAddress  model.Address   `json:"billing_address"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Carrier         string          `json:"carrier,omitempty"`
	CustomerNotes   string          `json:"customer_notes,omitempty"`
	OrderDate       time.Time       `json:"order_date"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Items           []orderItemResp `json:"items"`
}

func toOrderResp(o model.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResp{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			VariantSku:   it.VariantSku,
			Size:         it.Size,
			Color:        it.Color,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Subtotal:     it.Subtotal,
			Discount:     it.Discount,
			Total:        it.Total,
		})
	}
	return orderResp{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		ShippingCost:    o.ShippingCost,
		Discount:        o.Discount,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   o.PaymentMethod,
		TrackingNumber:  o.TrackingNumber,
		Carrier:         o.Carrier,
		CustomerNotes:   o.CustomerNotes,
		OrderDate:       o.OrderDate,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		Items:           items,
	}
}

func toOrderList(orders []model.Order) []orderResp {
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResp(o))
	}
	return out
}

func validAddress(a model.Address) bool {
	return a.FullName != "" && a.AddressLine1 != "" && a.City != "" &&
		a.PostalCode != "" && a.Country != ""
}

// requesterFor returns the ownership filter for order lookups: admins see
// every order, customers only their own.
func requesterFor(c echo.Context) string {
	if middleware.Role(c) == model.RoleAdmin {
		return ""
	}
	return middleware.UserID(c)
}

// Create: turn the user's cart into an order.  Stock is re-validated
// against the live catalog, so a 10s window covers the extra round trips.
func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	if !validAddress(req.ShippingAddress) {
		return respondErr(c, http.StatusBadRequest, "shipping address incomplete")
	}
	if req.BillingAddress != nil && !validAddress(*req.BillingAddress) {
		return respondErr(c, http.StatusBadRequest, "billing address incomplete")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	order, err := h.Orders.CreateOrder(ctx, service.CreateOrderInput{
		UserID:          middleware.UserID(c),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		CustomerNotes:   strings.TrimSpace(req.Notes),
	})
	if err != nil {
		var oos *service.OutOfStockError
		switch {
		case err == service.ErrEmptyCart:
			return respondErr(c, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &oos):
			return respondErr(c, http.StatusBadRequest, oos.Error())
		}
		return respondErr(c, http.StatusInternalServerError, "create order failed")
	}
	return respondOK(c, http.StatusCreated, toOrderResp(order))
}

// List: the caller's most recent orders.
func (h *OrderHandler) List(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orders, err := h.Orders.ListUserOrders(ctx, middleware.UserID(c), limit)
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "list orders failed")
	}
	return respondOK(c, http.StatusOK, toOrderList(orders))
}

// Get: single order by id, owner or admin only.
func (h *OrderHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetOrderByID(ctx, c.Param("id"), requesterFor(c))
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return respondErr(c, http.StatusNotFound, "order not found")
		case service.ErrUnauthorized:
			return respondErr(c, http.StatusForbidden, "not your order")
		}
		return respondErr(c, http.StatusInternalServerError, "load order failed")
	}
	return respondOK(c, http.StatusOK, toOrderResp(order))
}

// GetByNumber: single order by its human-readable number.
func (h *OrderHandler) GetByNumber(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetOrderByNumber(ctx, c.Param("orderNumber"), requesterFor(c))
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return respondErr(c, http.StatusNotFound, "order not found")
		case service.ErrUnauthorized:
			return respondErr(c, http.StatusForbidden, "not your order")
		}
		return respondErr(c, http.StatusInternalServerError, "load order failed")
	}
	return respondOK(c, http.StatusOK, toOrderResp(order))
}

// Cancel: customer-facing cancellation with stock restore.
func (h *OrderHandler) Cancel(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	order, err := h.Orders.CancelOrder(ctx, c.Param("id"), requesterFor(c))
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return respondErr(c, http.StatusNotFound, "order not found")
		case service.ErrUnauthorized:
			return respondErr(c, http.StatusForbidden, "not your order")
		case service.ErrCannotCancel:
			return respondErr(c, http.StatusBadRequest, "order cannot be cancelled")
		}
		return respondErr(c, http.StatusInternalServerError, "cancel order failed")
	}
	return respondOK(c, http.StatusOK, toOrderResp(order))
}

// Stats: per-status counts for the caller's orders.
func (h *OrderHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := middleware.UserID(c)
	if middleware.Role(c) == model.RoleAdmin {
		userID = "" // admins see the global counts
	}
	stats, err := h.Orders.OrderStats(ctx, userID)
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "load stats failed")
	}
	return respondOK(c, http.StatusOK, stats)
}

// Search: filtered, paginated listing (admin only, enforced by the router).
func (h *OrderHandler) Search(c echo.Context) error {
	q := repository.SearchQuery{
		UserID:        c.QueryParam("user_id"),
		Status:        model.OrderStatus(c.QueryParam("status")),
		PaymentStatus: model.PaymentStatus(c.QueryParam("payment_status")),
		Page:          1,
		Limit:         20,
	}
	if q.Status != "" && !q.Status.Valid() {
		return respondErr(c, http.StatusBadRequest, "unknown status")
	}
	if q.PaymentStatus != "" && !q.PaymentStatus.Valid() {
		return respondErr(c, http.StatusBadRequest, "unknown payment status")
	}
	if raw := c.QueryParam("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Page = n
		}
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			q.Limit = n
		}
	}
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondErr(c, http.StatusBadRequest, "from must be RFC3339")
		}
		q.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondErr(c, http.StatusBadRequest, "to must be RFC3339")
		}
		q.To = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orders, total, err := h.Orders.SearchOrders(ctx, q)
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "search orders failed")
	}
	return respondOK(c, http.StatusOK, echo.Map{
		"orders": toOrderList(orders),
		"total":  total,
		"page":   q.Page,
		"limit":  q.Limit,
	})
}

// UpdateStatus: admin-driven lifecycle transition with optional shipping
// metadata.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	status := model.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return respondErr(c, http.StatusBadRequest, "unknown status")
	}
	var meta *repository.StatusMeta
	if req.TrackingNumber != nil || req.Carrier != nil || req.InternalNotes != nil {
		meta = &repository.StatusMeta{
			TrackingNumber: req.TrackingNumber,
			Carrier:        req.Carrier,
			InternalNotes:  req.InternalNotes,
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.UpdateStatus(ctx, c.Param("id"), status, meta)
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return respondErr(c, http.StatusNotFound, "order not found")
		case service.ErrInvalidTransition:
			return respondErr(c, http.StatusBadRequest, "invalid status transition")
		}
		return respondErr(c, http.StatusInternalServerError, "update status failed")
	}
	return respondOK(c, http.StatusOK, toOrderResp(order))
}

// UpdatePayment: record the payment outcome reported by the gateway.
func (h *OrderHandler) UpdatePayment(c echo.Context) error {
	var req updatePaymentReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	status := model.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
	if !status.Valid() {
		return respondErr(c, http.StatusBadRequest, "unknown payment status")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.UpdatePaymentStatus(ctx, c.Param("id"), status, strings.TrimSpace(req.TransactionID))
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return respondErr(c, http.StatusNotFound, "order not found")
		case service.ErrInvalidTransition:
			return respondErr(c, http.StatusBadRequest, "invalid payment transition")
		}
		return respondErr(c, http.StatusInternalServerError, "update payment failed")
	}
	return respondOK(c, http.StatusOK, toOrderResp(order))
}
