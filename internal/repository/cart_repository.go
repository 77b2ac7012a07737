package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ecommerce-backend/internal/model"
)

// CartRepo persists carts in the `carts` table.  Each user owns at most one
// row (unique user_id); the line items live in a JSON column.  Every read
// or write slides the expiry window forward so active carts never get
// reaped.
type CartRepo struct {
	DB  *sql.DB
	TTL time.Duration // idle window before a cart expires
}

func NewCartRepo(db *sql.DB, ttl time.Duration) *CartRepo { return &CartRepo{DB: db, TTL: ttl} }

const cartColumns = "id,user_id,items,subtotal,expires_at,created_at,updated_at"

// FindByUser returns the user's cart without creating one.  Missing carts
// surface as ErrNotFound.
func (r *CartRepo) FindByUser(ctx context.Context, userID string) (model.Cart, error) {
	return r.scanOne(ctx, "SELECT "+cartColumns+" FROM carts WHERE user_id=? LIMIT 1", userID)
}

// FindOrCreate returns the user's cart, lazily inserting an empty one on
// first access.  A concurrent first access may race on the unique user_id;
// the loser of that race re-reads the winner's row.
func (r *CartRepo) FindOrCreate(ctx context.Context, userID string) (model.Cart, error) {
	cart, err := r.FindByUser(ctx, userID)
	if err == nil {
		// Slide the expiry on access; ignore failure, the cart itself loaded.
		_, _ = r.DB.ExecContext(ctx, "UPDATE carts SET expires_at=? WHERE user_id=?",
			time.Now().UTC().Add(r.TTL), userID)
		return cart, nil
	}
	if err != ErrNotFound {
		return model.Cart{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO carts (id,user_id,items,subtotal,expires_at) VALUES (?,?,?,?,?)",
		uuid.NewString(), userID, "[]", "0.00", time.Now().UTC().Add(r.TTL))
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "1062") {
		return model.Cart{}, err
	}
	return r.FindByUser(ctx, userID)
}

// SaveItems replaces the cart's item list and subtotal in one write and
// slides the expiry.  Last writer wins under concurrent mutation.
func (r *CartRepo) SaveItems(ctx context.Context, userID string, items []model.CartItem, subtotal decimal.Decimal) (model.Cart, error) {
	if items == nil {
		items = []model.CartItem{}
	}
	body, err := json.Marshal(items)
	if err != nil {
		return model.Cart{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE carts SET items=?, subtotal=?, expires_at=? WHERE user_id=?",
		body, subtotal.StringFixed(2), time.Now().UTC().Add(r.TTL), userID)
	if err != nil {
		return model.Cart{}, err
	}
	return r.FindByUser(ctx, userID)
}

// Clear empties the cart.  The row stays so the unique user_id keeps
// serializing lazy creation.
func (r *CartRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE carts SET items='[]', subtotal='0.00', expires_at=? WHERE user_id=?",
		time.Now().UTC().Add(r.TTL), userID)
	return err
}

// DeleteExpired removes carts whose expiry has passed.  Called by the
// background reaper.
func (r *CartRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM carts WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *CartRepo) scanOne(ctx context.Context, query string, args ...interface{}) (model.Cart, error) {
	var (
		c        model.Cart
		itemsRaw []byte
		subtotal string
	)
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.UserID, &itemsRaw, &subtotal, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Cart{}, ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	if err := json.Unmarshal(itemsRaw, &c.Items); err != nil {
		return model.Cart{}, err
	}
	if c.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return model.Cart{}, err
	}
	return c, nil
}
