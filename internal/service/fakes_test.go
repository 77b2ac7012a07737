package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
)

// fakeCatalog is an in-memory ProductCatalog.  Stock adjustments mutate
// the product so later checks observe them.
type fakeCatalog struct {
	products    map[string]Product
	adjustments map[string][]int
	adjustErr   error
}

func newFakeCatalog(products ...Product) *fakeCatalog {
	f := &fakeCatalog{products: make(map[string]Product), adjustments: make(map[string][]int)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID string) (Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) AdjustStock(_ context.Context, productID string, delta int) error {
	if f.adjustErr != nil {
		return f.adjustErr
	}
	f.adjustments[productID] = append(f.adjustments[productID], delta)
	p, ok := f.products[productID]
	if ok {
		p.TotalStock += delta
		f.products[productID] = p
	}
	return nil
}

// fakeCartStore is an in-memory CartStore.
type fakeCartStore struct {
	carts    map[string]model.Cart
	saveErr  error
	clearErr error
	cleared  []string
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[string]model.Cart)}
}

func (f *fakeCartStore) FindByUser(_ context.Context, userID string) (model.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return model.Cart{}, repository.ErrNotFound
	}
	return cart, nil
}

func (f *fakeCartStore) FindOrCreate(_ context.Context, userID string) (model.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		cart = model.Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			Subtotal:  decimal.Zero,
			ExpiresAt: time.Now().Add(72 * time.Hour),
		}
		f.carts[userID] = cart
	}
	return cart, nil
}

func (f *fakeCartStore) SaveItems(_ context.Context, userID string, items []model.CartItem, subtotal decimal.Decimal) (model.Cart, error) {
	if f.saveErr != nil {
		return model.Cart{}, f.saveErr
	}
	cart, ok := f.carts[userID]
	if !ok {
		cart = model.Cart{ID: uuid.NewString(), UserID: userID}
	}
	cart.Items = items
	cart.Subtotal = subtotal
	cart.UpdatedAt = time.Now()
	f.carts[userID] = cart
	return cart, nil
}

func (f *fakeCartStore) Clear(_ context.Context, userID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	cart, ok := f.carts[userID]
	if ok {
		cart.Items = nil
		cart.Subtotal = decimal.Zero
		f.carts[userID] = cart
	}
	f.cleared = append(f.cleared, userID)
	return nil
}

// fakeOrderStore is an in-memory OrderStore with the repository's
// stamp-once timestamp behavior.
type fakeOrderStore struct {
	orders     map[string]model.Order
	byNumber   map[string]string
	createErr  error
	collisions int // pending CreateWithItems calls that fail as number-taken
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]model.Order), byNumber: make(map[string]string)}
}

func (f *fakeOrderStore) CreateWithItems(_ context.Context, o *model.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.collisions > 0 {
		f.collisions--
		return repository.ErrOrderNumberTaken
	}
	if _, taken := f.byNumber[o.OrderNumber]; taken {
		return repository.ErrOrderNumberTaken
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.orders[o.ID] = *o
	f.byNumber[o.OrderNumber] = o.ID
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, id string) (model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) GetByNumber(_ context.Context, orderNumber string) (model.Order, error) {
	id, ok := f.byNumber[orderNumber]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	return f.orders[id], nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string, limit int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Search(_ context.Context, q repository.SearchQuery) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range f.orders {
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.PaymentStatus != "" && o.PaymentStatus != q.PaymentStatus {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, id string, status model.OrderStatus, meta *repository.StatusMeta) (model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	o.Status = status
	now := time.Now()
	switch status {
	case model.OrderShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case model.OrderDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	case model.OrderCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &now
		}
	}
	if meta != nil {
		if meta.TrackingNumber != nil {
			o.TrackingNumber = *meta.TrackingNumber
		}
		if meta.Carrier != nil {
			o.Carrier = *meta.Carrier
		}
		if meta.InternalNotes != nil {
			o.InternalNotes = *meta.InternalNotes
		}
	}
	f.orders[id] = o
	return o, nil
}

func (f *fakeOrderStore) UpdatePaymentStatus(_ context.Context, id string, status model.PaymentStatus, txnID string) (model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	o.PaymentStatus = status
	if txnID != "" {
		o.PaymentTxnID = txnID
	}
	if status == model.PaymentPaid && o.PaidAt == nil {
		now := time.Now()
		o.PaidAt = &now
	}
	f.orders[id] = o
	return o, nil
}

func (f *fakeOrderStore) CountByStatus(_ context.Context, userID string) (map[model.OrderStatus]int, error) {
	out := make(map[model.OrderStatus]int)
	for _, o := range f.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		out[o.Status]++
	}
	return out, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	routingKey string
	payload    interface{}
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

var errStoreDown = errors.New("store down")
