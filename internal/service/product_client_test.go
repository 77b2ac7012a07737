package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestProductClientGetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/p-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"id": "p-1",
				"name": "T-Shirt",
				"base_price": "15.00",
				"total_stock": 7,
				"variants": [{"sku":"TS-M","size":"M","color":"red","price":"17.50","stock":3}],
				"images": [{"url":"https://cdn.example.com/ts.jpg","is_primary":true}]
			}
		}`))
	}))
	defer srv.Close()

	client := NewProductClient(srv.URL)
	p, err := client.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, "T-Shirt", p.Name)
	require.True(t, p.BasePrice.Equal(decimal.NewFromFloat(15.00)))
	require.Equal(t, 7, p.TotalStock)
	require.Equal(t, "https://cdn.example.com/ts.jpg", p.PrimaryImage())
	require.True(t, p.HasStock("TS-M", 3))
	require.False(t, p.HasStock("TS-M", 4))
	require.False(t, p.HasStock("ghost", 1))
}

func TestProductClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewProductClient(srv.URL).GetProduct(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewProductClient(srv.URL).GetProduct(context.Background(), "p-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrProductNotFound)
}

func TestProductClientAdjustStock(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/products/p-1/stock", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewProductClient(srv.URL).AdjustStock(context.Background(), "p-1", -2)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"quantity": -2}, got)
}
