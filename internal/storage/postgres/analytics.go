package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/swag-store/internal/domain/analytics"
)

const (
	analyticsTotalsSQL = `SELECT COALESCE(SUM(total), 0), COUNT(*),
			COALESCE(SUM(discount_amount), 0), COALESCE(SUM(bulk_savings), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2`

	revenueByDaySQL = `SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, SUM(total), COUNT(*)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day`

	topProductsSQL = `SELECT item->>'product_id' AS product_id, MAX(item->>'name'),
			SUM((item->>'quantity')::int), SUM((item->>'line_total')::numeric)
		FROM orders, jsonb_array_elements(items) AS item
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY product_id
		ORDER BY 3 DESC, product_id
		LIMIT $3`

	couponUsageByRangeSQL = `SELECT coupon_code, COUNT(*), SUM(discount_amount)
		FROM orders
		WHERE coupon_code <> '' AND created_at >= $1 AND created_at < $2
		GROUP BY coupon_code
		ORDER BY 2 DESC, coupon_code`
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository aggregates the orders table for the dashboard.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// Totals returns headline figures for the range.
func (r *AnalyticsRepository) Totals(ctx context.Context, rng analytics.Range) (analytics.Totals, error) {
	var t analytics.Totals
	err := r.pool.QueryRow(ctx, analyticsTotalsSQL, rng.From, rng.To).
		Scan(&t.Revenue, &t.Orders, &t.Discounts, &t.BulkSavings)
	if err != nil {
		return analytics.Totals{}, errors.Wrap(err, "analytics totals")
	}
	return t, nil
}

// RevenueByDay returns revenue for days that have orders.
func (r *AnalyticsRepository) RevenueByDay(ctx context.Context, rng analytics.Range) ([]analytics.DayRevenue, error) {
	rows, err := r.pool.Query(ctx, revenueByDaySQL, rng.From, rng.To)
	if err != nil {
		return nil, errors.Wrap(err, "revenue by day")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.DayRevenue, error) {
		var d analytics.DayRevenue
		err := row.Scan(&d.Day, &d.Revenue, &d.Orders)
		return d, err
	})
}

// TopProducts returns the best sellers by quantity.
func (r *AnalyticsRepository) TopProducts(ctx context.Context, rng analytics.Range, limit int) ([]analytics.ProductSales, error) {
	rows, err := r.pool.Query(ctx, topProductsSQL, rng.From, rng.To, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.ProductSales, error) {
		var p analytics.ProductSales
		err := row.Scan(&p.ProductID, &p.Name, &p.Quantity, &p.Revenue)
		return p, err
	})
}

// CouponUsage returns redemptions per coupon, most used first.
func (r *AnalyticsRepository) CouponUsage(ctx context.Context, rng analytics.Range) ([]analytics.CouponUsage, error) {
	rows, err := r.pool.Query(ctx, couponUsageByRangeSQL, rng.From, rng.To)
	if err != nil {
		return nil, errors.Wrap(err, "coupon usage")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.CouponUsage, error) {
		var c analytics.CouponUsage
		err := row.Scan(&c.Code, &c.Uses, &c.Discount)
		return c, err
	})
}
