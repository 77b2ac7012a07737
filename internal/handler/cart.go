package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/middleware"
	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/service"
)

// CartHandler serves the per-user cart endpoints.
type CartHandler struct {
	Carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{Carts: carts}
}

// ----- DTOs -----

type cartItemReq struct {
	ProductID  string `json:"product_id"`
	VariantSku string `json:"variant_sku"`
	Quantity   int    `json:"quantity"`
}

type cartResp struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Items      []model.CartItem `json:"items"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	TotalItems int              `json:"total_items"`
	ExpiresAt  time.Time        `json:"expires_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func toCartResp(cart model.Cart) cartResp {
	count := 0
	for _, it := range cart.Items {
		count += it.Quantity
	}
	items := cart.Items
	if items == nil {
		items = []model.CartItem{}
	}
	return cartResp{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      items,
		Subtotal:   cart.Subtotal,
		TotalItems: count,
		ExpiresAt:  cart.ExpiresAt,
		UpdatedAt:  cart.UpdatedAt,
	}
}

// Get: return the cart, creating an empty one on first access.
func (h *CartHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.GetCart(ctx, middleware.UserID(c))
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "load cart failed")
	}
	return respondOK(c, http.StatusOK, toCartResp(cart))
}

// AddItem: add a product line, merging into an existing line with the same
// product and variant.
func (h *CartHandler) AddItem(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return respondErr(c, http.StatusBadRequest, "product_id required")
	}
	if req.Quantity < 1 {
		return respondErr(c, http.StatusBadRequest, "quantity must be at least 1")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.AddItem(ctx, middleware.UserID(c), service.AddItemInput{
		ProductID:  strings.TrimSpace(req.ProductID),
		VariantSku: strings.TrimSpace(req.VariantSku),
		Quantity:   req.Quantity,
	})
	if err != nil {
		switch err {
		case service.ErrProductNotFound:
			return respondErr(c, http.StatusNotFound, "product not found")
		case service.ErrInsufficientStock:
			return respondErr(c, http.StatusBadRequest, "insufficient stock")
		}
		return respondErr(c, http.StatusInternalServerError, "add item failed")
	}
	return respondOK(c, http.StatusOK, toCartResp(cart))
}

// UpdateItem: set the quantity of an existing line.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return respondErr(c, http.StatusBadRequest, "product_id required")
	}
	if req.Quantity < 1 {
		return respondErr(c, http.StatusBadRequest, "quantity must be at least 1")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.UpdateItem(ctx, middleware.UserID(c), service.AddItemInput{
		ProductID:  strings.TrimSpace(req.ProductID),
		VariantSku: strings.TrimSpace(req.VariantSku),
		Quantity:   req.Quantity,
	})
	if err != nil {
		switch err {
		case service.ErrItemNotFound:
			return respondErr(c, http.StatusNotFound, "item not found in cart")
		case service.ErrProductNotFound:
			return respondErr(c, http.StatusNotFound, "product not found")
		case service.ErrInsufficientStock:
			return respondErr(c, http.StatusBadRequest, "insufficient stock")
		}
		return respondErr(c, http.StatusInternalServerError, "update item failed")
	}
	return respondOK(c, http.StatusOK, toCartResp(cart))
}

// RemoveItem: drop a line.  The variant is passed as a query parameter so
// the route stays /cart/items/:productID.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	productID := c.Param("productID")
	if productID == "" {
		return respondErr(c, http.StatusBadRequest, "product id required")
	}
	variantSku := c.QueryParam("variant_sku")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.RemoveItem(ctx, middleware.UserID(c), productID, variantSku)
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "remove item failed")
	}
	return respondOK(c, http.StatusOK, toCartResp(cart))
}

// Clear: empty the cart.
func (h *CartHandler) Clear(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.ClearCart(ctx, middleware.UserID(c)); err != nil {
		return respondErr(c, http.StatusInternalServerError, "clear cart failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Validate: re-check every line against live stock without mutating the
// cart.  Returns valid=true with an empty problem list when all is well.
func (h *CartHandler) Validate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	problems, err := h.Carts.ValidateCart(ctx, middleware.UserID(c))
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "validate cart failed")
	}
	if problems == nil {
		problems = []string{}
	}
	return respondOK(c, http.StatusOK, echo.Map{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}
