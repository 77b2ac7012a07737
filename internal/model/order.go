package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
    OrderPending    OrderStatus = "pending"
    OrderConfirmed  OrderStatus = "confirmed"
    OrderProcessing OrderStatus = "processing"
    OrderShipped    OrderStatus = "shipped"
    OrderDelivered  OrderStatus = "delivered"
    OrderCancelled  OrderStatus = "cancelled"
    OrderRefunded   OrderStatus = "refunded"
)

// PaymentStatus tracks payment independently of the order lifecycle.
type PaymentStatus string

const (
    PaymentPending  PaymentStatus = "pending"
    PaymentPaid     PaymentStatus = "paid"
    PaymentFailed   PaymentStatus = "failed"
    PaymentRefunded PaymentStatus = "refunded"
)

// statusTransitions lists the allowed next states for each order status.
// Cancellation is reachable from every state before shipment; shipped
// orders can only progress to delivered; refund follows delivery or
// cancellation of a paid order (the payment-side guard lives in
// paymentTransitions).  Setting the current status again is treated as
// idempotent and always allowed.
var statusTransitions = map[OrderStatus][]OrderStatus{
    OrderPending:    {OrderConfirmed, OrderProcessing, OrderCancelled},
    OrderConfirmed:  {OrderProcessing, OrderShipped, OrderCancelled},
    OrderProcessing: {OrderShipped, OrderCancelled},
    OrderShipped:    {OrderDelivered},
    OrderDelivered:  {OrderRefunded},
    OrderCancelled:  {OrderRefunded},
    OrderRefunded:   {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
    PaymentPending:  {PaymentPaid, PaymentFailed},
    PaymentPaid:     {PaymentRefunded},
    PaymentFailed:   {},
    PaymentRefunded: {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
    _, ok := statusTransitions[s]
    return ok
}

// CanTransitionTo reports whether the order may move from s to next.
// Re-setting the same status is allowed so that repeated webhook or admin
// calls stay idempotent.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
    if s == next {
        return true
    }
    for _, t := range statusTransitions[s] {
        if t == next {
            return true
        }
    }
    return false
}

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
    _, ok := paymentTransitions[p]
    return ok
}

// CanTransitionTo reports whether the payment may move from p to next.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
    if p == next {
        return true
    }
    for _, t := range paymentTransitions[p] {
        if t == next {
            return true
        }
    }
    return false
}

// OrderItem is a frozen snapshot of one purchased line.  Product identity
// and price are copied at order time and never follow later catalog edits.
//
// Fields:
//  ID           - primary key (uuid).
//  OrderID      - owning order.
//  ProductID    - product identifier in the catalog service.
//  ProductName  - name snapshot.
//  ProductImage - image URL snapshot, if any.
//  VariantSku   - variant sku, empty for the base product.
//  Size, Color  - variant attributes snapshot.
//  Quantity     - units purchased.
//  UnitPrice    - per-unit price snapshot.
//  Subtotal     - Quantity * UnitPrice before line discount.
//  Discount     - line discount (currently always zero).
//  Total        - Subtotal - Discount.
type OrderItem struct {
    ID           string          // order_items.id
    OrderID      string          // order_items.order_id
    ProductID    string          // order_items.product_id
    ProductName  string          // order_items.product_name
    ProductImage string          // order_items.product_image
    VariantSku   string          // order_items.variant_sku
    Size         string          // order_items.size
    Color        string          // order_items.color
    Quantity     int             // order_items.quantity
    UnitPrice    decimal.Decimal // order_items.unit_price
    Subtotal     decimal.Decimal // order_items.subtotal
    Discount     decimal.Decimal // order_items.discount
    Total        decimal.Decimal // order_items.total
}

// Order mirrors the `orders` table.  Monetary fields use DECIMAL(10,2)
// columns and decimal values throughout; Total always equals
// Subtotal + Tax + ShippingCost - Discount.  The *At timestamps are
// stamped exactly once, on the first transition into the matching state.
type Order struct {
    ID              string          // orders.id
    OrderNumber     string          // orders.order_number (unique)
    UserID          string          // orders.user_id
    Status          OrderStatus     // orders.status
    PaymentStatus   PaymentStatus   // orders.payment_status
    Subtotal        decimal.Decimal // orders.subtotal
    Tax             decimal.Decimal // orders.tax
    ShippingCost    decimal.Decimal // orders.shipping_cost
    Discount        decimal.Decimal // orders.discount
    Total           decimal.Decimal // orders.total
    ShippingAddress Address         // orders.shipping_address (JSON)
    BillingAddress  Address         // orders.billing_address (JSON)
    PaymentMethod   string          // orders.payment_method
    PaymentTxnID    string          // orders.payment_transaction_id
    TrackingNumber  string          // orders.tracking_number
    Carrier         string          // orders.carrier
    CustomerNotes   string          // orders.customer_notes
    InternalNotes   string          // orders.internal_notes
    OrderDate       time.Time       // orders.order_date
    PaidAt          *time.Time      // orders.paid_at (nullable)
    ShippedAt       *time.Time      // orders.shipped_at (nullable)
    DeliveredAt     *time.Time      // orders.delivered_at (nullable)
    CancelledAt     *time.Time      // orders.cancelled_at (nullable)
    CreatedAt       time.Time       // orders.created_at
    UpdatedAt       time.Time       // orders.updated_at
    Items           []OrderItem     // joined from order_items
}
