package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func tshirt() Product {
	return Product{
		ID:         "p-1",
		Name:       "T-Shirt",
		BasePrice:  decimal.NewFromFloat(15.00),
		TotalStock: 10,
		Variants: []ProductVariant{
			{Sku: "TS-M-RED", Size: "M", Color: "red", Price: decimal.NewFromFloat(17.50), Stock: 3},
			{Sku: "TS-L-BLUE", Size: "L", Color: "blue", Price: decimal.NewFromFloat(18.00), Stock: 0},
		},
		Images: []ProductImage{{URL: "https://cdn.example.com/ts.jpg", IsPrimary: true}},
	}
}

func TestAddItemSnapshotsProduct(t *testing.T) {
	carts := newFakeCartStore()
	svc := NewCartService(carts, newFakeCatalog(tshirt()))
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	it := cart.Items[0]
	require.Equal(t, "T-Shirt", it.ProductName)
	require.Equal(t, "https://cdn.example.com/ts.jpg", it.ProductImage)
	require.Equal(t, "M", it.Size)
	require.Equal(t, "red", it.Color)
	require.True(t, it.UnitPrice.Equal(decimal.NewFromFloat(17.50)))
	require.True(t, it.Total.Equal(decimal.NewFromFloat(35.00)))
	require.True(t, cart.Subtotal.Equal(decimal.NewFromFloat(35.00)))
}

func TestAddItemMergesSameLine(t *testing.T) {
	carts := newFakeCartStore()
	svc := NewCartService(carts, newFakeCatalog(tshirt()))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 1})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Quantity)
	require.True(t, cart.Subtotal.Equal(decimal.NewFromFloat(52.50)))
}

func TestAddItemDistinctVariantsAreSeparateLines(t *testing.T) {
	carts := newFakeCartStore()
	svc := NewCartService(carts, newFakeCatalog(tshirt()))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 1})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", Quantity: 1}) // base product
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	// 17.50 + 15.00
	require.True(t, cart.Subtotal.Equal(decimal.NewFromFloat(32.50)))
}

func TestAddItemInsufficientStock(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCatalog(tshirt()))

	_, err := svc.AddItem(context.Background(), "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-L-BLUE", Quantity: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = svc.AddItem(context.Background(), "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 4})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCatalog())

	_, err := svc.AddItem(context.Background(), "u-1", AddItemInput{ProductID: "ghost", Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateItemSetsQuantityKeepingPrice(t *testing.T) {
	carts := newFakeCartStore()
	catalog := newFakeCatalog(tshirt())
	svc := NewCartService(carts, catalog)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 1})
	require.NoError(t, err)

	// Catalog price changes after the line was added; the snapshot holds.
	p := catalog.products["p-1"]
	p.Variants[0].Price = decimal.NewFromFloat(99.99)
	catalog.products["p-1"] = p

	cart, err := svc.UpdateItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 3, cart.Items[0].Quantity)
	require.True(t, cart.Items[0].UnitPrice.Equal(decimal.NewFromFloat(17.50)))
	require.True(t, cart.Subtotal.Equal(decimal.NewFromFloat(52.50)))
}

func TestUpdateItemMissingLine(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCatalog(tshirt()))

	_, err := svc.UpdateItem(context.Background(), "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 1})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItemRecomputesSubtotal(t *testing.T) {
	carts := newFakeCartStore()
	svc := NewCartService(carts, newFakeCatalog(tshirt()))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, "u-1", "p-1", "TS-M-RED")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.True(t, cart.Subtotal.Equal(decimal.NewFromFloat(30.00)))

	// Removing an absent line keeps the cart intact.
	cart, err = svc.RemoveItem(ctx, "u-1", "p-1", "TS-M-RED")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
}

func TestValidateCartReportsProblems(t *testing.T) {
	carts := newFakeCartStore()
	catalog := newFakeCatalog(tshirt())
	svc := NewCartService(carts, catalog)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", AddItemInput{ProductID: "p-1", VariantSku: "TS-M-RED", Quantity: 2})
	require.NoError(t, err)

	problems, err := svc.ValidateCart(ctx, "u-1")
	require.NoError(t, err)
	require.Empty(t, problems)

	// Stock drains after the item was added.
	p := catalog.products["p-1"]
	p.Variants[0].Stock = 1
	catalog.products["p-1"] = p

	problems, err = svc.ValidateCart(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], "T-Shirt")

	// Product disappears entirely.
	delete(catalog.products, "p-1")
	problems, err = svc.ValidateCart(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], "no longer available")
}

func TestValidateCartNoCart(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCatalog())

	problems, err := svc.ValidateCart(context.Background(), "u-1")
	require.NoError(t, err)
	require.Nil(t, problems)
}
