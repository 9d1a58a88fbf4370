package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/order"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
)

const (
	orderColumns = `id, user_key, user_name, items, subtotal, bulk_savings, discount_amount, total,
		coupon_code, created_at`

	insertOrderSQL = `INSERT INTO orders (id, user_key, user_name, items, subtotal, bulk_savings,
			discount_amount, total, coupon_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	redeemCouponSQL = `UPDATE coupons SET times_used = times_used + 1
		WHERE code = $1 AND (usage_limit = 0 OR times_used < usage_limit)`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_key = $1
		ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2`

	countOrdersSQL = `SELECT COUNT(*) FROM orders`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// items are stored as a JSONB array.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, decrements stock with an audit entry per item,
// and counts the coupon redemption, all in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserKey, o.UserName, itemsJSON, o.Subtotal, o.BulkSavings,
			o.DiscountAmount, o.Total, o.CouponCode, o.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "insert order %q", o.ID)
		}

		for _, item := range o.Items {
			e, err := adjustStock(ctx, tx, item.ProductID, -item.Quantity, stock.ReasonOrder)
			switch {
			case errors.Is(err, stock.ErrNegativeStock):
				return &order.InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: e.NewStock,
				}
			case errors.Is(err, product.ErrNotFound):
				return &order.ProductNotFoundError{ProductID: item.ProductID}
			case err != nil:
				return err
			}
		}

		if o.CouponCode == "" {
			return nil
		}
		tag, err := tx.Exec(ctx, redeemCouponSQL, o.CouponCode)
		if err != nil {
			return errors.Wrapf(err, "redeem coupon %q", o.CouponCode)
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(coupon.ErrUsageLimitReached, "coupon %s", o.CouponCode)
		}
		return nil
	})
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userKey string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userKey)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns one page of orders and the total number of orders.
func (r *OrderRepository) List(ctx context.Context, offset, limit int) ([]order.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
	)
	if err := row.Scan(
		&o.ID, &o.UserKey, &o.UserName, &itemsJSON, &o.Subtotal, &o.BulkSavings,
		&o.DiscountAmount, &o.Total, &o.CouponCode, &o.CreatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	return o, nil
}
