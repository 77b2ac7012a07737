package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/queue"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
	"github.com/iliyamo/ecommerce-backend/internal/utils"
)

// Pricing policy applied at order creation.  Monetary math is decimal
// throughout; binary floats never touch an amount.
var (
	taxRate           = decimal.NewFromFloat(0.10)  // 10% of subtotal
	freeShippingAbove = decimal.NewFromInt(50)      // subtotal threshold
	flatShippingFee   = decimal.NewFromFloat(5.99)  // applied under the threshold
)

// orderNumberAttempts bounds the retry loop on order-number collisions.
const orderNumberAttempts = 5

// Domain errors raised by the order flows.
var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrCannotCancel      = errors.New("order cannot be cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// OutOfStockError names the first cart line whose live stock no longer
// covers the requested quantity.  No order is created when it fires.
type OutOfStockError struct {
	ProductName string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock", e.ProductName)
}

// OrderStore is the slice of the order repository the service consumes.
type OrderStore interface {
	CreateWithItems(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (model.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
	Search(ctx context.Context, q repository.SearchQuery) ([]model.Order, int, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, meta *repository.StatusMeta) (model.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, txnID string) (model.Order, error)
	CountByStatus(ctx context.Context, userID string) (map[model.OrderStatus]int, error)
}

// EventPublisher is the broker contract the order flow needs.  Publish
// failures are non-fatal to the user-visible operation; the service logs
// them and moves on.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// CreateOrderInput is the validated payload for order creation.
type CreateOrderInput struct {
	UserID          string
	ShippingAddress model.Address
	BillingAddress  *model.Address // defaults to shipping when nil
	PaymentMethod   string
	CustomerNotes   string
}

// OrderService converts carts into immutable orders and drives the order
// and payment state machines.  Stock reservation against the catalog is
// deliberately not transactional with order persistence: the cancellation
// path restores stock instead of a two-phase commit, and the inconsistency
// window is the gap between the two sequential calls.
type OrderService struct {
	orders    OrderStore
	carts     CartStore
	catalog   ProductCatalog
	publisher EventPublisher
}

func NewOrderService(orders OrderStore, carts CartStore, catalog ProductCatalog, publisher EventPublisher) *OrderService {
	return &OrderService{orders: orders, carts: carts, catalog: catalog, publisher: publisher}
}

// CreateOrder turns the user's cart into an order.  The sequence is:
// re-validate stock against the live catalog, compute pricing, persist
// order+items atomically (retrying order-number collisions), then
// best-effort decrement stock, clear the cart and publish order.created.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (model.Order, error) {
	cart, err := s.carts.FindByUser(ctx, in.UserID)
	if err == repository.ErrNotFound {
		return model.Order{}, ErrEmptyCart
	}
	if err != nil {
		return model.Order{}, err
	}
	if len(cart.Items) == 0 {
		return model.Order{}, ErrEmptyCart
	}

	// The cart's snapshots may be stale; every line must clear a live
	// stock check before anything is written.
	for _, it := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err == ErrProductNotFound {
			return model.Order{}, &OutOfStockError{ProductName: it.ProductName}
		}
		if err != nil {
			return model.Order{}, err
		}
		if !product.HasStock(it.VariantSku, it.Quantity) {
			return model.Order{}, &OutOfStockError{ProductName: it.ProductName}
		}
	}

	subtotal := cart.Subtotal
	tax := subtotal.Mul(taxRate).Round(2)
	shipping := flatShippingFee
	if subtotal.GreaterThan(freeShippingAbove) {
		shipping = decimal.Zero
	}
	discount := decimal.Zero
	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}

	now := time.Now().UTC()
	order := model.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Status:          model.OrderPending,
		PaymentStatus:   model.PaymentPending,
		Subtotal:        subtotal,
		Tax:             tax,
		ShippingCost:    shipping,
		Discount:        discount,
		Total:           total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   in.PaymentMethod,
		CustomerNotes:   in.CustomerNotes,
		OrderDate:       now,
	}
	for _, it := range cart.Items {
		order.Items = append(order.Items, model.OrderItem{
			ID:           uuid.NewString(),
			OrderID:      order.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			VariantSku:   it.VariantSku,
			Size:         it.Size,
			Color:        it.Color,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Subtotal:     it.Total,
			Discount:     decimal.Zero,
			Total:        it.Total,
		})
	}

	// The random suffix can collide within a day; the unique order_number
	// column catches it and a fresh number is tried.
	for attempt := 0; ; attempt++ {
		order.OrderNumber = utils.NewOrderNumber(now)
		err = s.orders.CreateWithItems(ctx, &order)
		if err == nil {
			break
		}
		if err == repository.ErrOrderNumberTaken && attempt < orderNumberAttempts-1 {
			continue
		}
		return model.Order{}, err
	}

	// Reserve inventory.  Not atomic with the insert above: a failed
	// decrement is logged and healed by the cancellation path's restore.
	for _, it := range order.Items {
		if err := s.catalog.AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
			log.Printf("order: stock decrement failed for product %s: %v", it.ProductID, err)
		}
	}

	if err := s.carts.Clear(ctx, in.UserID); err != nil {
		log.Printf("order: clearing cart for user %s failed: %v", in.UserID, err)
	}

	s.publish(ctx, queue.RouteOrderCreated, queue.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		ItemCount:   len(order.Items),
		Timestamp:   now.Format(time.RFC3339),
	})

	log.Printf("order: created %s (%s) for user %s", order.ID, order.OrderNumber, order.UserID)
	return s.orders.GetByID(ctx, order.ID)
}

// GetOrderByID loads an order, enforcing ownership when a requester id is
// supplied.  An empty requester id is the admin/internal context.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID, requesterID string) (model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if requesterID != "" && order.UserID != requesterID {
		return model.Order{}, ErrUnauthorized
	}
	return order, nil
}

// GetOrderByNumber is GetOrderByID keyed by the human-readable number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber, requesterID string) (model.Order, error) {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return model.Order{}, err
	}
	if requesterID != "" && order.UserID != requesterID {
		return model.Order{}, ErrUnauthorized
	}
	return order, nil
}

// ListUserOrders returns the user's most recent orders.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return s.orders.ListByUser(ctx, userID, limit)
}

// SearchOrders runs a filtered, paginated listing (admin surface).
func (s *OrderService) SearchOrders(ctx context.Context, q repository.SearchQuery) ([]model.Order, int, error) {
	return s.orders.Search(ctx, q)
}

// OrderStats aggregates counts per lifecycle status.
func (s *OrderService) OrderStats(ctx context.Context, userID string) (map[model.OrderStatus]int, error) {
	return s.orders.CountByStatus(ctx, userID)
}

// UpdateStatus moves the order through its lifecycle.  Transitions outside
// the allowed table fail as ErrInvalidTransition; re-setting the current
// status is idempotent and never restamps a timestamp.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, newStatus model.OrderStatus, meta *repository.StatusMeta) (model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if !order.Status.CanTransitionTo(newStatus) {
		return model.Order{}, ErrInvalidTransition
	}
	updated, err := s.orders.UpdateStatus(ctx, orderID, newStatus, meta)
	if err != nil {
		return model.Order{}, err
	}
	if order.Status != newStatus {
		s.publish(ctx, queue.RouteOrderStatusChanged, queue.OrderStatusChangedEvent{
			OrderID:     updated.ID,
			OrderNumber: updated.OrderNumber,
			OldStatus:   string(order.Status),
			NewStatus:   string(newStatus),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})
	}
	log.Printf("order: %s status %s -> %s", orderID, order.Status, newStatus)
	return updated, nil
}

// UpdatePaymentStatus drives the parallel payment state.  The first
// transition to paid stamps paid_at and, when the lifecycle is still
// pending, auto-advances it to confirmed: a successful payment implicitly
// confirms the order.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID string, newStatus model.PaymentStatus, txnID string) (model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if !order.PaymentStatus.CanTransitionTo(newStatus) {
		return model.Order{}, ErrInvalidTransition
	}
	updated, err := s.orders.UpdatePaymentStatus(ctx, orderID, newStatus, txnID)
	if err != nil {
		return model.Order{}, err
	}
	if newStatus == model.PaymentPaid && updated.Status == model.OrderPending {
		if updated, err = s.orders.UpdateStatus(ctx, orderID, model.OrderConfirmed, nil); err != nil {
			return model.Order{}, err
		}
	}
	log.Printf("order: %s payment %s -> %s", orderID, order.PaymentStatus, newStatus)
	return updated, nil
}

// CancelOrder rejects shipped, delivered and already-cancelled orders,
// stamps cancelled_at once and restores every item's stock (the
// compensating action for the optimistic reservation in CreateOrder).
func (s *OrderService) CancelOrder(ctx context.Context, orderID, requesterID string) (model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if requesterID != "" && order.UserID != requesterID {
		return model.Order{}, ErrUnauthorized
	}
	switch order.Status {
	case model.OrderShipped, model.OrderDelivered, model.OrderCancelled:
		return model.Order{}, ErrCannotCancel
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, model.OrderCancelled, nil)
	if err != nil {
		return model.Order{}, err
	}
	for _, it := range order.Items {
		if err := s.catalog.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			log.Printf("order: stock restore failed for product %s: %v", it.ProductID, err)
		}
	}
	s.publish(ctx, queue.RouteOrderStatusChanged, queue.OrderStatusChangedEvent{
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		OldStatus:   string(order.Status),
		NewStatus:   string(model.OrderCancelled),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	log.Printf("order: cancelled %s", orderID)
	return updated, nil
}

// publish sends an event and logs any failure.  Event delivery is
// best-effort from the caller's point of view.
func (s *OrderService) publish(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		log.Printf("order: publish %s failed: %v", routingKey, err)
	}
}
