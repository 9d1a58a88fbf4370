package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/validation"
)

const (
	day              = 24 * time.Hour
	defaultRangeDays = 30
	topProductsLimit = 5
)

// Service builds dashboard summaries, caching them per range.
type Service struct {
	repo  Repository
	cache Cache
	now   func() time.Time
}

// NewService creates an analytics Service. cache may be nil.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Window converts inclusive calendar dates into a Range. Zero values default
// to the last 30 days ending today.
func (s *Service) Window(from, to time.Time) (Range, error) {
	today := s.now().UTC().Truncate(day)
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -(defaultRangeDays - 1))
	}
	from = from.UTC().Truncate(day)
	to = to.UTC().Truncate(day)
	if from.After(to) {
		return Range{}, validation.Field("from", "must not be after to")
	}
	return Range{From: from, To: to.Add(day)}, nil
}

// Summary returns aggregates for the inclusive date range [from, to]. Cache
// failures are logged and fall through to the repository.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	r, err := s.Window(from, to)
	if err != nil {
		return nil, err
	}
	lg := zctx.From(ctx)
	key := r.From.Format(time.DateOnly) + ":" + r.To.Format(time.DateOnly)

	if s.cache != nil {
		var cached Summary
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			lg.Warn("Analytics cache read failed", zap.Error(err))
		}
		if ok {
			return &cached, nil
		}
	}

	out := &Summary{From: r.From, To: r.To}
	if out.Totals, err = s.repo.Totals(ctx, r); err != nil {
		return nil, errors.Wrap(err, "totals")
	}
	if out.RevenueTrends, err = s.repo.RevenueByDay(ctx, r); err != nil {
		return nil, errors.Wrap(err, "revenue by day")
	}
	out.RevenueTrends = fillDays(r, out.RevenueTrends)
	if out.TopProducts, err = s.repo.TopProducts(ctx, r, topProductsLimit); err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	if out.CouponUsage, err = s.repo.CouponUsage(ctx, r); err != nil {
		return nil, errors.Wrap(err, "coupon usage")
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out); err != nil {
			lg.Warn("Analytics cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops cached summaries, e.g. after a new order.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// fillDays returns one entry per day in r, using zero revenue for days with
// no orders.
func fillDays(r Range, rows []DayRevenue) []DayRevenue {
	byDay := make(map[time.Time]DayRevenue, len(rows))
	for _, row := range rows {
		byDay[row.Day.UTC().Truncate(day)] = row
	}
	var out []DayRevenue
	for d := r.From; d.Before(r.To); d = d.Add(day) {
		row, ok := byDay[d]
		if !ok {
			row = DayRevenue{}
		}
		row.Day = d
		out = append(out, row)
	}
	return out
}
