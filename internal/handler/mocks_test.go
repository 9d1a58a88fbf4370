package handler

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/swag-store/internal/domain/analytics"
	"github.com/xenking/swag-store/internal/domain/auth"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/order"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
	"github.com/xenking/swag-store/internal/domain/user"
)

type memProducts struct {
	byID map[string]*product.Product
}

func (m *memProducts) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b product.Product) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) Create(_ context.Context, p *product.Product) error {
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProducts) Update(_ context.Context, p *product.Product) error {
	if _, ok := m.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memCoupons struct {
	byCode map[string]coupon.Coupon
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &c, nil
}

func (m *memCoupons) List(_ context.Context, activeOnly bool) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, c := range m.byCode {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b coupon.Coupon) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (m *memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	if _, ok := m.byCode[c.Code]; ok {
		return coupon.ErrAlreadyExists
	}
	m.byCode[c.Code] = *c
	return nil
}

func (m *memCoupons) Update(_ context.Context, c *coupon.Coupon) error {
	if _, ok := m.byCode[c.Code]; !ok {
		return coupon.ErrInvalidCoupon
	}
	m.byCode[c.Code] = *c
	return nil
}

func (m *memCoupons) Delete(_ context.Context, code string) error {
	if _, ok := m.byCode[code]; !ok {
		return coupon.ErrInvalidCoupon
	}
	delete(m.byCode, code)
	return nil
}

func (m *memCoupons) Usage(_ context.Context, _, _ string) (coupon.Usage, error) {
	return coupon.Usage{}, nil
}

type memOrders struct {
	orders []order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) ListByUser(_ context.Context, userKey string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if o.UserKey == userKey {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) List(_ context.Context, offset, limit int) ([]order.Order, int, error) {
	if offset >= len(m.orders) {
		return nil, len(m.orders), nil
	}
	end := min(offset+limit, len(m.orders))
	return m.orders[offset:end], len(m.orders), nil
}

type memStock struct {
	products *memProducts
	log      []stock.LogEntry
}

func (m *memStock) Adjust(_ context.Context, productID string, delta int, reason string) (*stock.LogEntry, error) {
	p, ok := m.products.byID[productID]
	if !ok {
		return nil, product.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, stock.ErrNegativeStock
	}
	p.Stock += delta
	e := stock.LogEntry{
		ID:          int64(len(m.log) + 1),
		ProductID:   productID,
		ProductName: p.Name,
		Change:      delta,
		NewStock:    p.Stock,
		Reason:      reason,
		CreatedAt:   now,
	}
	m.log = append(m.log, e)
	return &e, nil
}

func (m *memStock) History(_ context.Context, limit int) ([]stock.LogEntry, error) {
	return m.log[:min(limit, len(m.log))], nil
}

type memUsers struct{}

func (memUsers) Upsert(_ context.Context, u *user.User) error {
	u.CreatedAt = now
	return nil
}

type memKeys struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *memKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

type stubAnalytics struct{}

func (stubAnalytics) Totals(context.Context, analytics.Range) (analytics.Totals, error) {
	return analytics.Totals{Revenue: decimal.RequireFromString("202.5"), Orders: 1}, nil
}

func (stubAnalytics) RevenueByDay(context.Context, analytics.Range) ([]analytics.DayRevenue, error) {
	return nil, nil
}

func (stubAnalytics) TopProducts(context.Context, analytics.Range, int) ([]analytics.ProductSales, error) {
	return []analytics.ProductSales{{ProductID: "hoodie", Name: "Hoodie", Quantity: 5, Revenue: decimal.NewFromInt(225)}}, nil
}

func (stubAnalytics) CouponUsage(context.Context, analytics.Range) ([]analytics.CouponUsage, error) {
	return nil, nil
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
