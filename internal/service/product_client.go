// Package service contains the orchestrators that compose repositories,
// the token issuer, the product catalog client and the event publisher
// into the auth, cart and order flows.  Every dependency is passed in
// through a constructor; nothing here holds package-level state.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when the catalog has no product with the
// requested id.
var ErrProductNotFound = errors.New("product not found")

// ProductVariant is one sellable variation of a product as reported by the
// catalog service.
type ProductVariant struct {
	Sku   string          `json:"sku"`
	Size  string          `json:"size"`
	Color string          `json:"color"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// ProductImage is a catalog image reference.
type ProductImage struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

// Product is the slice of the catalog's product document that the cart and
// order flows need: pricing, stock and display fields.
type Product struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	BasePrice  decimal.Decimal  `json:"base_price"`
	TotalStock int              `json:"total_stock"`
	Variants   []ProductVariant `json:"variants"`
	Images     []ProductImage   `json:"images"`
}

// PrimaryImage returns the URL of the product's primary image, or empty.
func (p Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	return ""
}

// HasStock reports whether the product can cover quantity units of the
// given variant (empty sku means the base product).  An unknown sku means
// no stock.
func (p Product) HasStock(variantSku string, quantity int) bool {
	if variantSku != "" {
		for _, v := range p.Variants {
			if v.Sku == variantSku {
				return v.Stock >= quantity
			}
		}
		return false
	}
	return p.TotalStock >= quantity
}

// ProductCatalog is the contract the cart and order services need from the
// external product catalog.  The HTTP client below implements it; tests
// substitute a fake.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error
}

// ProductClient talks to the product catalog service over HTTP.  All calls
// carry the client's bounded timeout, so a hung catalog surfaces as a
// transient dependency error instead of a stuck request.
type ProductClient struct {
	baseURL string
	http    *http.Client
}

// NewProductClient builds a client for the catalog at baseURL.
func NewProductClient(baseURL string) *ProductClient {
	return &ProductClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetProduct fetches a product by id.  A 404 from the catalog maps to
// ErrProductNotFound; everything else non-200 is a dependency error.
func (c *ProductClient) GetProduct(ctx context.Context, productID string) (Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/"+productID, nil)
	if err != nil {
		return Product{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("product service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Product{}, ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("product service: unexpected status %d", resp.StatusCode)
	}
	// The catalog wraps responses in the standard {success, data} envelope.
	var envelope struct {
		Data Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Product{}, fmt.Errorf("product service: decode: %w", err)
	}
	return envelope.Data, nil
}

// AdjustStock changes a product's stock by delta: negative to reserve on
// order creation, positive to restore on cancellation.
func (c *ProductClient) AdjustStock(ctx context.Context, productID string, delta int) error {
	body, err := json.Marshal(map[string]int{"quantity": delta})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/products/"+productID+"/stock", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("product service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("product service: stock update status %d", resp.StatusCode)
	}
	return nil
}
