package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/swag-store/internal/domain/analytics"
	"github.com/xenking/swag-store/internal/storage/redis"
	"github.com/xenking/swag-store/internal/validation"
)

type stubRepo struct {
	totalsCalls int
	lastRange   analytics.Range
}

func (s *stubRepo) Totals(_ context.Context, r analytics.Range) (analytics.Totals, error) {
	s.totalsCalls++
	s.lastRange = r
	return analytics.Totals{
		Revenue:   decimal.RequireFromString("405.50"),
		Orders:    2,
		Discounts: decimal.NewFromInt(45),
	}, nil
}

func (s *stubRepo) RevenueByDay(_ context.Context, r analytics.Range) ([]analytics.DayRevenue, error) {
	return []analytics.DayRevenue{
		{Day: r.From.Add(24 * time.Hour), Revenue: decimal.NewFromInt(100), Orders: 1},
	}, nil
}

func (s *stubRepo) TopProducts(_ context.Context, _ analytics.Range, limit int) ([]analytics.ProductSales, error) {
	return []analytics.ProductSales{{ProductID: "hoodie", Name: "Hoodie", Quantity: limit}}, nil
}

func (s *stubRepo) CouponUsage(_ context.Context, _ analytics.Range) ([]analytics.CouponUsage, error) {
	return []analytics.CouponUsage{{Code: "TEN", Uses: 1, Discount: decimal.NewFromInt(45)}}, nil
}

func newCache(t *testing.T) *redis.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewCache(client, "analytics:", time.Minute)
}

func TestSummaryCached(t *testing.T) {
	repo := &stubRepo{}
	svc := analytics.NewService(repo, newCache(t))
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	first, err := svc.Summary(ctx, from, to)
	require.NoError(t, err)
	second, err := svc.Summary(ctx, from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.totalsCalls)
	assert.True(t, first.Totals.Revenue.Equal(second.Totals.Revenue))
	assert.Equal(t, 2, second.Totals.Orders)
	require.Len(t, second.RevenueTrends, 3)
	assert.True(t, second.RevenueTrends[0].Revenue.IsZero())
	assert.True(t, decimal.NewFromInt(100).Equal(second.RevenueTrends[1].Revenue))
	assert.Equal(t, "TEN", second.CouponUsage[0].Code)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Summary(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.totalsCalls)
}

func TestSummaryWithoutCache(t *testing.T) {
	repo := &stubRepo{}
	svc := analytics.NewService(repo, nil)
	from := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s, err := svc.Summary(context.Background(), from, to)
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.totalsCalls)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.lastRange.From)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), repo.lastRange.To)
	assert.Len(t, s.RevenueTrends, 1)
	assert.Equal(t, 5, s.TopProducts[0].Quantity)
}

func TestWindow(t *testing.T) {
	svc := analytics.NewService(&stubRepo{}, nil)

	r, err := svc.Window(time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, r.To.Sub(r.From))

	_, err = svc.Window(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	var vErr *validation.Error
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "from")
}
