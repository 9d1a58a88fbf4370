// Package analytics aggregates order data for the admin dashboard.
package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Range is a half-open time interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Totals are headline figures for a range.
type Totals struct {
	Revenue   decimal.Decimal `json:"total_revenue"`
	Orders    int             `json:"total_orders"`
	Discounts decimal.Decimal `json:"total_discounts"`
	// BulkSavings is the sum of tier savings granted.
	BulkSavings decimal.Decimal `json:"total_bulk_savings"`
}

// DayRevenue is revenue for one calendar day (UTC).
type DayRevenue struct {
	Day     time.Time       `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// ProductSales is a best-seller row.
type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// CouponUsage counts redemptions of a coupon within a range.
type CouponUsage struct {
	Code     string          `json:"code"`
	Uses     int             `json:"uses"`
	Discount decimal.Decimal `json:"discount"`
}

// Summary is the dashboard payload.
type Summary struct {
	From          time.Time      `json:"from"`
	To            time.Time      `json:"to"`
	Totals        Totals         `json:"totals"`
	RevenueTrends []DayRevenue   `json:"revenue_trends"`
	TopProducts   []ProductSales `json:"top_products"`
	CouponUsage   []CouponUsage  `json:"coupon_usage"`
}

// Repository runs the aggregate queries.
type Repository interface {
	Totals(ctx context.Context, r Range) (Totals, error)
	RevenueByDay(ctx context.Context, r Range) ([]DayRevenue, error)
	TopProducts(ctx context.Context, r Range, limit int) ([]ProductSales, error)
	CouponUsage(ctx context.Context, r Range) ([]CouponUsage, error)
}

// Cache stores computed summaries.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context) error
}
