package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// CartItem is one line in a cart.  Items are keyed by the composite
// (ProductID, VariantSku); variant-less products use an empty sku.  Unit
// price and total are snapshots taken when the line was added or last
// updated; the order flow re-validates against the live catalog.
//
// Fields:
//  ProductID    - product identifier in the catalog service.
//  ProductName  - display name snapshot.
//  ProductImage - primary image URL snapshot, if any.
//  VariantSku   - variant sku, empty for the base product.
//  Size         - variant size, if the variant defines one.
//  Color        - variant color, if the variant defines one.
//  Quantity     - number of units, always >= 1.
//  UnitPrice    - price per unit at the time of the snapshot.
//  Total        - Quantity * UnitPrice.
type CartItem struct {
    ProductID    string          `json:"product_id"`
    ProductName  string          `json:"product_name"`
    ProductImage string          `json:"product_image,omitempty"`
    VariantSku   string          `json:"variant_sku,omitempty"`
    Size         string          `json:"size,omitempty"`
    Color        string          `json:"color,omitempty"`
    Quantity     int             `json:"quantity"`
    UnitPrice    decimal.Decimal `json:"unit_price"`
    Total        decimal.Decimal `json:"total"`
}

// Cart mirrors the `carts` table.  One row per user (unique user_id); the
// item list is stored as a JSON column.  ExpiresAt is a sliding window,
// refreshed whenever the cart is read or written, and a background reaper
// deletes rows past it.
//
// Fields:
//  ID        - primary key (uuid).
//  UserID    - owner of the cart (unique).
//  Items     - line items, JSON encoded in the items column.
//  Subtotal  - sum of all line totals, recomputed on every mutation.
//  ExpiresAt - when the cart becomes eligible for reaping.
//  CreatedAt - timestamp of creation.
//  UpdatedAt - timestamp of last update.
type Cart struct {
    ID        string          // carts.id
    UserID    string          // carts.user_id
    Items     []CartItem      // carts.items (JSON)
    Subtotal  decimal.Decimal // carts.subtotal
    ExpiresAt time.Time       // carts.expires_at
    CreatedAt time.Time       // carts.created_at
    UpdatedAt time.Time       // carts.updated_at
}

// Subtotal of the given items.  Kept here so the service and the tests
// agree on the single definition.
func CartSubtotal(items []CartItem) decimal.Decimal {
    sum := decimal.Zero
    for _, it := range items {
        sum = sum.Add(it.Total)
    }
    return sum
}
