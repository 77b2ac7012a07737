package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/model"
)

// OrderRepo provides persistence for orders and their item snapshots.
// An order and its items are written inside a single transaction: there is
// never an order without items or items without an order.  All timestamp
// fields are stored in UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// ErrOrderNumberTaken is returned when the generated order number collides
// with an existing row.  The service retries with a fresh number.
var ErrOrderNumberTaken = errors.New("order number already taken")

// StatusMeta carries the optional fields an admin can attach while moving
// an order through its lifecycle.
type StatusMeta struct {
	TrackingNumber *string
	Carrier        *string
	InternalNotes  *string
}

// SearchQuery filters the order listing.  Zero values mean "no filter".
type SearchQuery struct {
	UserID        string
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

const orderColumns = "id,order_number,user_id,status,payment_status," +
	"subtotal,tax,shipping_cost,discount,total," +
	"shipping_address,billing_address,payment_method,payment_transaction_id," +
	"tracking_number,carrier,customer_notes,internal_notes," +
	"order_date,paid_at,shipped_at,delivered_at,cancelled_at,created_at,updated_at"

// CreateWithItems inserts the order and all of its item snapshots in one
// transaction.  The caller must supply ids and a unique order number; a
// collision on the order_number unique key is reported as
// ErrOrderNumberTaken so the caller can regenerate and retry.
func (r *OrderRepo) CreateWithItems(ctx context.Context, o *model.Order) error {
	shipAddr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	billAddr, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, payment_status,
		    subtotal, tax, shipping_cost, discount, total,
		    shipping_address, billing_address, payment_method, customer_notes, order_date)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.OrderNumber, o.UserID, string(o.Status), string(o.PaymentStatus),
		o.Subtotal.StringFixed(2), o.Tax.StringFixed(2), o.ShippingCost.StringFixed(2),
		o.Discount.StringFixed(2), o.Total.StringFixed(2),
		shipAddr, billAddr, o.PaymentMethod, o.CustomerNotes, o.OrderDate)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrOrderNumberTaken
		}
		return err
	}

	if len(o.Items) > 0 {
		query := `INSERT INTO order_items (id, order_id, product_id, product_name, product_image,
		    variant_sku, size, color, quantity, unit_price, subtotal, discount, total) VALUES `
		args := make([]interface{}, 0, len(o.Items)*13)
		for i, it := range o.Items {
			if i > 0 {
				query += ","
			}
			query += "(?,?,?,?,?,?,?,?,?,?,?,?,?)"
			args = append(args, it.ID, o.ID, it.ProductID, it.ProductName, it.ProductImage,
				it.VariantSku, it.Size, it.Color, it.Quantity,
				it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2),
				it.Discount.StringFixed(2), it.Total.StringFixed(2))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID loads an order with its items.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (model.Order, error) {
	return r.getOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=? LIMIT 1", id)
}

// GetByNumber loads an order by its human-readable number.
func (r *OrderRepo) GetByNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	return r.getOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_number=? LIMIT 1", orderNumber)
}

func (r *OrderRepo) getOne(ctx context.Context, query string, args ...interface{}) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return model.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser returns the user's most recent orders with items attached.
func (r *OrderRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id=? ORDER BY order_date DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

// Search returns filtered, paginated orders and the total match count.
func (r *OrderRepo) Search(ctx context.Context, q SearchQuery) ([]model.Order, int, error) {
	where := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if q.UserID != "" {
		where = append(where, "user_id=?")
		args = append(args, q.UserID)
	}
	if q.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(q.Status))
	}
	if q.PaymentStatus != "" {
		where = append(where, "payment_status=?")
		args = append(args, string(q.PaymentStatus))
	}
	if q.From != nil {
		where = append(where, "order_date>=?")
		args = append(args, *q.From)
	}
	if q.To != nil {
		where = append(where, "order_date<=?")
		args = append(args, *q.To)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders"+cond+" ORDER BY order_date DESC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	orders, err := r.collect(ctx, rows)
	return orders, total, err
}

// UpdateStatus sets the lifecycle status, stamps the matching timestamp on
// the first transition into shipped/delivered/cancelled (IFNULL keeps an
// already-set stamp), applies any metadata and returns the fresh row.
// Transition legality is the service's job; the repository just writes.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, meta *StatusMeta) (model.Order, error) {
	now := time.Now().UTC()
	sets := []string{"status=?"}
	args := []interface{}{string(status)}
	switch status {
	case model.OrderShipped:
		sets = append(sets, "shipped_at=IFNULL(shipped_at,?)")
		args = append(args, now)
	case model.OrderDelivered:
		sets = append(sets, "delivered_at=IFNULL(delivered_at,?)")
		args = append(args, now)
	case model.OrderCancelled:
		sets = append(sets, "cancelled_at=IFNULL(cancelled_at,?)")
		args = append(args, now)
	}
	if meta != nil {
		if meta.TrackingNumber != nil {
			sets = append(sets, "tracking_number=?")
			args = append(args, *meta.TrackingNumber)
		}
		if meta.Carrier != nil {
			sets = append(sets, "carrier=?")
			args = append(args, *meta.Carrier)
		}
		if meta.InternalNotes != nil {
			sets = append(sets, "internal_notes=?")
			args = append(args, *meta.InternalNotes)
		}
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx,
		"UPDATE orders SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
		return model.Order{}, err
	}
	return r.GetByID(ctx, id)
}

// UpdatePaymentStatus sets the payment status, stamps paid_at once on the
// first transition to paid and records the transaction id if given.
func (r *OrderRepo) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, txnID string) (model.Order, error) {
	sets := []string{"payment_status=?"}
	args := []interface{}{string(status)}
	if status == model.PaymentPaid {
		sets = append(sets, "paid_at=IFNULL(paid_at,?)")
		args = append(args, time.Now().UTC())
	}
	if txnID != "" {
		sets = append(sets, "payment_transaction_id=?")
		args = append(args, txnID)
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx,
		"UPDATE orders SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
		return model.Order{}, err
	}
	return r.GetByID(ctx, id)
}

// CountByStatus aggregates order counts per lifecycle status, optionally
// scoped to one user.
func (r *OrderRepo) CountByStatus(ctx context.Context, userID string) (map[model.OrderStatus]int, error) {
	query := "SELECT status, COUNT(*) FROM orders"
	args := []interface{}{}
	if userID != "" {
		query += " WHERE user_id=?"
		args = append(args, userID)
	}
	query += " GROUP BY status"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.OrderStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.OrderStatus(status)] = n
	}
	return counts, rows.Err()
}

// collect scans the remaining order rows and attaches their items with one
// IN query instead of a query per order.
func (r *OrderRepo) collect(ctx context.Context, rows *sql.Rows) ([]model.Order, error) {
	orders := make([]model.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orderIDs []string) (map[string][]model.OrderItem, error) {
	placeholders := make([]string, len(orderIDs))
	args := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, product_image, variant_sku, size, color,
		    quantity, unit_price, subtotal, discount, total
		 FROM order_items WHERE order_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY order_id, id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			it                               model.OrderItem
			unitPrice, sub, discount, total string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductImage,
			&it.VariantSku, &it.Size, &it.Color, &it.Quantity,
			&unitPrice, &sub, &discount, &total); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, err
		}
		if it.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, err
		}
		if it.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, err
		}
		if it.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// rowScanner lets scanOrder work for both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o                                      model.Order
		status, payStatus                      string
		subtotal, tax, shipping, disc, total   string
		shipAddr, billAddr                     []byte
		payMethod, payTxn, tracking, carrier   sql.NullString
		custNotes, intNotes                    sql.NullString
		paidAt, shippedAt, deliveredAt, cancAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &status, &payStatus,
		&subtotal, &tax, &shipping, &disc, &total,
		&shipAddr, &billAddr, &payMethod, &payTxn,
		&tracking, &carrier, &custNotes, &intNotes,
		&o.OrderDate, &paidAt, &shippedAt, &deliveredAt, &cancAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(payStatus)
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return model.Order{}, err
	}
	if o.Tax, err = decimal.NewFromString(tax); err != nil {
		return model.Order{}, err
	}
	if o.ShippingCost, err = decimal.NewFromString(shipping); err != nil {
		return model.Order{}, err
	}
	if o.Discount, err = decimal.NewFromString(disc); err != nil {
		return model.Order{}, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return model.Order{}, err
	}
	if err := json.Unmarshal(shipAddr, &o.ShippingAddress); err != nil {
		return model.Order{}, err
	}
	if len(billAddr) > 0 {
		if err := json.Unmarshal(billAddr, &o.BillingAddress); err != nil {
			return model.Order{}, err
		}
	}
	o.PaymentMethod = payMethod.String
	o.PaymentTxnID = payTxn.String
	o.TrackingNumber = tracking.String
	o.Carrier = carrier.String
	o.CustomerNotes = custNotes.String
	o.InternalNotes = intNotes.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if shippedAt.Valid {
		t := shippedAt.Time
		o.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	if cancAt.Valid {
		t := cancAt.Time
		o.CancelledAt = &t
	}
	return o, nil
}
