package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
	"github.com/iliyamo/ecommerce-backend/internal/service"
)

// memCarts is a minimal service.CartStore for handler tests.
type memCarts struct {
	carts map[string]model.Cart
}

func (m *memCarts) FindByUser(_ context.Context, userID string) (model.Cart, error) {
	cart, ok := m.carts[userID]
	if !ok {
		return model.Cart{}, repository.ErrNotFound
	}
	return cart, nil
}

func (m *memCarts) FindOrCreate(_ context.Context, userID string) (model.Cart, error) {
	cart, ok := m.carts[userID]
	if !ok {
		cart = model.Cart{ID: "cart-" + userID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
		m.carts[userID] = cart
	}
	return cart, nil
}

func (m *memCarts) SaveItems(_ context.Context, userID string, items []model.CartItem, subtotal decimal.Decimal) (model.Cart, error) {
	cart, _ := m.FindOrCreate(context.Background(), userID)
	cart.Items = items
	cart.Subtotal = subtotal
	m.carts[userID] = cart
	return cart, nil
}

func (m *memCarts) Clear(_ context.Context, userID string) error {
	cart, ok := m.carts[userID]
	if ok {
		cart.Items = nil
		cart.Subtotal = decimal.Zero
		m.carts[userID] = cart
	}
	return nil
}

// memCatalog is a minimal service.ProductCatalog for handler tests.
type memCatalog struct {
	products map[string]service.Product
}

func (m *memCatalog) GetProduct(_ context.Context, productID string) (service.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return service.Product{}, service.ErrProductNotFound
	}
	return p, nil
}

func (m *memCatalog) AdjustStock(context.Context, string, int) error { return nil }

func newCartHandlerFixture() *CartHandler {
	catalog := &memCatalog{products: map[string]service.Product{
		"p-1": {ID: "p-1", Name: "T-Shirt", BasePrice: decimal.NewFromFloat(15.00), TotalStock: 5},
	}}
	carts := &memCarts{carts: make(map[string]model.Cart)}
	return NewCartHandler(service.NewCartService(carts, catalog))
}

func doCart(t *testing.T, h func(echo.Context) error, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u-1")
	require.NoError(t, h(c))
	return rec
}

func TestCartAddItemEnvelope(t *testing.T) {
	h := newCartHandlerFixture()

	rec := doCart(t, h.AddItem, http.MethodPost, "/v1/cart/items",
		`{"product_id":"p-1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Items      []model.CartItem `json:"items"`
			Subtotal   string           `json:"subtotal"`
			TotalItems int              `json:"total_items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, 2, resp.Data.TotalItems)
	require.Equal(t, "30", resp.Data.Subtotal)
}

func TestCartAddItemValidation(t *testing.T) {
	h := newCartHandlerFixture()

	cases := []struct {
		name, body string
	}{
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"product_id":"p-1","quantity":0}`},
		{"negative quantity", `{"product_id":"p-1","quantity":-2}`},
	}
	for _, tc := range cases {
		rec := doCart(t, h.AddItem, http.MethodPost, "/v1/cart/items", tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
		require.Contains(t, rec.Body.String(), `"success":false`, tc.name)
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	h := newCartHandlerFixture()

	rec := doCart(t, h.AddItem, http.MethodPost, "/v1/cart/items",
		`{"product_id":"ghost","quantity":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	h := newCartHandlerFixture()

	rec := doCart(t, h.AddItem, http.MethodPost, "/v1/cart/items",
		`{"product_id":"p-1","quantity":99}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient stock")
}

func TestCartGetCreatesEmptyCart(t *testing.T) {
	h := newCartHandlerFixture()

	rec := doCart(t, h.Get, http.MethodGet, "/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	// The items field serializes as an empty array, never null.
	require.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestCartValidateEndpoint(t *testing.T) {
	h := newCartHandlerFixture()

	rec := doCart(t, h.AddItem, http.MethodPost, "/v1/cart/items",
		`{"product_id":"p-1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doCart(t, h.Validate, http.MethodGet, "/v1/cart/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"valid":true`)
}
