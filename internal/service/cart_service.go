package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
)

// Domain errors raised by the cart flows.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("item not found in cart")
)

// CartStore is the slice of the cart repository the services consume.
type CartStore interface {
	FindByUser(ctx context.Context, userID string) (model.Cart, error)
	FindOrCreate(ctx context.Context, userID string) (model.Cart, error)
	SaveItems(ctx context.Context, userID string, items []model.CartItem, subtotal decimal.Decimal) (model.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// AddItemInput identifies the product line to add and how many units.
type AddItemInput struct {
	ProductID  string
	VariantSku string
	Quantity   int
}

// CartService mutates per-user carts.  Lines are keyed by the composite
// (product id, variant sku); adding an existing key increments its
// quantity.  Two concurrent mutations of the same cart are last-writer-
// wins, which the order flow tolerates by re-validating stock at order
// time.
type CartService struct {
	carts   CartStore
	catalog ProductCatalog
}

func NewCartService(carts CartStore, catalog ProductCatalog) *CartService {
	return &CartService{carts: carts, catalog: catalog}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID string) (model.Cart, error) {
	return s.carts.FindOrCreate(ctx, userID)
}

// AddItem resolves price and variant attributes from the live catalog,
// checks stock, merges the line into the cart and recomputes the subtotal.
func (s *CartService) AddItem(ctx context.Context, userID string, in AddItemInput) (model.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return model.Cart{}, err
	}
	if !product.HasStock(in.VariantSku, in.Quantity) {
		return model.Cart{}, ErrInsufficientStock
	}

	unitPrice := product.BasePrice
	var size, color string
	if in.VariantSku != "" {
		for _, v := range product.Variants {
			if v.Sku == in.VariantSku {
				unitPrice = v.Price
				size, color = v.Size, v.Color
				break
			}
		}
	}

	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return model.Cart{}, err
	}
	items := append([]model.CartItem(nil), cart.Items...)

	idx := findItem(items, in.ProductID, in.VariantSku)
	if idx >= 0 {
		items[idx].Quantity += in.Quantity
		items[idx].UnitPrice = unitPrice
		items[idx].Total = unitPrice.Mul(decimal.NewFromInt(int64(items[idx].Quantity)))
	} else {
		items = append(items, model.CartItem{
			ProductID:    in.ProductID,
			ProductName:  product.Name,
			ProductImage: product.PrimaryImage(),
			VariantSku:   in.VariantSku,
			Size:         size,
			Color:        color,
			Quantity:     in.Quantity,
			UnitPrice:    unitPrice,
			Total:        unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		})
	}
	return s.carts.SaveItems(ctx, userID, items, model.CartSubtotal(items))
}

// UpdateItem sets the quantity of an existing line.  The line keeps its
// price snapshot; only the quantity and totals change.
func (s *CartService) UpdateItem(ctx context.Context, userID string, in AddItemInput) (model.Cart, error) {
	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return model.Cart{}, err
	}
	items := append([]model.CartItem(nil), cart.Items...)
	idx := findItem(items, in.ProductID, in.VariantSku)
	if idx < 0 {
		return model.Cart{}, ErrItemNotFound
	}
	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return model.Cart{}, err
	}
	if !product.HasStock(in.VariantSku, in.Quantity) {
		return model.Cart{}, ErrInsufficientStock
	}
	items[idx].Quantity = in.Quantity
	items[idx].Total = items[idx].UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	return s.carts.SaveItems(ctx, userID, items, model.CartSubtotal(items))
}

// RemoveItem drops a line from the cart.  Removing an absent line is a
// no-op write that still recomputes the subtotal.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID, variantSku string) (model.Cart, error) {
	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return model.Cart{}, err
	}
	items := make([]model.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		if it.ProductID == productID && it.VariantSku == variantSku {
			continue
		}
		items = append(items, it)
	}
	return s.carts.SaveItems(ctx, userID, items, model.CartSubtotal(items))
}

// ClearCart empties the cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

// ValidateCart re-checks every line against live catalog stock and returns
// human-readable problems without mutating anything.  An absent or empty
// cart is trivially valid.
func (s *CartService) ValidateCart(ctx context.Context, userID string) ([]string, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, it := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err == ErrProductNotFound {
			problems = append(problems, fmt.Sprintf("%s is no longer available", it.ProductName))
			continue
		}
		if err != nil {
			return nil, err
		}
		if !product.HasStock(it.VariantSku, it.Quantity) {
			problems = append(problems, fmt.Sprintf("%s is out of stock or has insufficient quantity", it.ProductName))
		}
	}
	return problems, nil
}

func findItem(items []model.CartItem, productID, variantSku string) int {
	for i, it := range items {
		if it.ProductID == productID && it.VariantSku == variantSku {
			return i
		}
	}
	return -1
}
