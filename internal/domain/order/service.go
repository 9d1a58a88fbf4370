package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/discount"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/pricing"
	"github.com/xenking/swag-store/internal/validation"
)

const (
	instrumentationName = "github.com/xenking/swag-store/internal/domain/order"

	defaultPageLimit = 12
	maxPageLimit     = 100
)

// Quote is a priced set of lines with an optional coupon applied.
type Quote struct {
	Lines  []pricing.Line
	Coupon *coupon.Coupon
	Totals discount.Totals
}

// Offer describes how a coupon relates to the current cart.
type Offer struct {
	Coupon     coupon.Coupon
	Applicable bool
	// Reason explains why the coupon is not applicable.
	Reason   string
	Savings  decimal.Decimal
	UsesLeft int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserKey    string
	UserName   string
	Items      []LineRequest
	CouponCode string
	// ClientTotal is the total the client displayed, if it sent one. It is
	// only compared against the server total for diagnostics.
	ClientTotal *decimal.Decimal
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithClock overrides the time source used for coupon expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service encapsulates quoting and order placement business logic.
type Service struct {
	products product.Repository
	coupons  coupon.Repository
	usage    coupon.UsageRepository
	orders   Repository
	now      func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer

	ordersPlaced      metric.Int64Counter
	revenue           metric.Float64Counter
	couponRedemptions metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Repository,
	usage coupon.UsageRepository,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products:       products,
		coupons:        coupons,
		usage:          usage,
		orders:         orders,
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.ordersPlaced, err = meter.Int64Counter("swag.orders.placed",
		metric.WithDescription("Number of orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if s.revenue, err = meter.Float64Counter("swag.orders.revenue",
		metric.WithDescription("Order revenue after discounts"),
	); err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	if s.couponRedemptions, err = meter.Int64Counter("swag.coupons.redeemed",
		metric.WithDescription("Number of coupon redemptions"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon counter")
	}
	return s, nil
}

// Quote prices items and applies couponCode when given. Coupon eligibility is
// not checked; an unmet minimum order is reported through the totals.
func (s *Service) Quote(ctx context.Context, items []LineRequest, couponCode string) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote")
	defer span.End()

	lines, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	q := &Quote{Lines: lines}
	if code := coupon.NormalizeCode(couponCode); code != "" {
		c, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			return nil, errors.Wrap(err, "find coupon")
		}
		q.Coupon = c
	}
	q.Totals = discount.Compose(lines, q.Coupon)
	return q, nil
}

// Offers evaluates every active coupon against the cart. Applicable coupons
// come first, then by savings descending.
func (s *Service) Offers(ctx context.Context, userKey string, items []LineRequest) ([]Offer, error) {
	ctx, span := s.tracer.Start(ctx, "order.Offers")
	defer span.End()

	lines, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}
	coupons, err := s.coupons.List(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	now := s.now()
	offers := make([]Offer, 0, len(coupons))
	for i := range coupons {
		c := &coupons[i]
		usage, err := s.userUsage(ctx, userKey, c.Code)
		if err != nil {
			return nil, err
		}
		offers = append(offers, evaluate(c, usage, lines, now))
	}

	slices.SortStableFunc(offers, func(a, b Offer) int {
		if a.Applicable != b.Applicable {
			if a.Applicable {
				return -1
			}
			return 1
		}
		return b.Savings.Cmp(a.Savings)
	})
	return offers, nil
}

func evaluate(c *coupon.Coupon, usage coupon.Usage, lines []pricing.Line, now time.Time) Offer {
	o := Offer{Coupon: *c, Savings: decimal.Zero, UsesLeft: c.UsesLeft()}
	if err := coupon.Check(c, usage, now); err != nil {
		o.Reason = coupon.Reason(err)
		return o
	}
	t := discount.Compose(lines, c)
	switch {
	case t.CouponCriteriaUnmet:
		o.Reason = fmt.Sprintf("Minimum order of $%s required", c.MinOrderValue.StringFixed(2))
	case !discount.Applicable(lines, c).IsPositive():
		o.Reason = coupon.Reason(coupon.ErrNoEligibleItems)
	default:
		o.Applicable = true
		o.Savings = t.CouponSavings
	}
	return o
}

// PlaceOrder validates items, checks stock and coupon eligibility, composes
// the totals, and persists the order. The server-computed total is
// authoritative.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	lines, err := s.resolve(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.Product.Stock < l.Quantity {
			return nil, &InsufficientStockError{
				ProductID: l.Product.ID,
				Requested: l.Quantity,
				Available: l.Product.Stock,
			}
		}
	}

	var c *coupon.Coupon
	if code := coupon.NormalizeCode(req.CouponCode); code != "" {
		if c, err = s.coupons.FindByCode(ctx, code); err != nil {
			return nil, errors.Wrap(err, "find coupon")
		}
		usage, err := s.userUsage(ctx, req.UserKey, c.Code)
		if err != nil {
			return nil, err
		}
		if err := coupon.Check(c, usage, s.now()); err != nil {
			return nil, errors.Wrapf(err, "coupon %s", c.Code)
		}
	}

	t := discount.Compose(lines, c)
	if c != nil {
		if t.CouponCriteriaUnmet {
			return nil, errors.Wrapf(coupon.ErrMinOrderNotMet, "coupon %s", c.Code)
		}
		if !discount.Applicable(lines, c).IsPositive() {
			return nil, errors.Wrapf(coupon.ErrNoEligibleItems, "coupon %s", c.Code)
		}
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserKey:        req.UserKey,
		UserName:       req.UserName,
		Items:          make([]Item, len(lines)),
		Subtotal:       t.SubtotalBase.Round(2),
		BulkSavings:    t.BulkSavings.Round(2),
		DiscountAmount: t.CouponSavings.Round(2),
		CreatedAt:      s.now().UTC(),
	}
	// Total = Subtotal - BulkSavings - DiscountAmount, on the rounded parts.
	afterBulk := o.Subtotal.Sub(o.BulkSavings)
	o.DiscountAmount = decimal.Min(o.DiscountAmount, afterBulk)
	o.Total = afterBulk.Sub(o.DiscountAmount)
	if c != nil {
		o.CouponCode = c.Code
	}
	for i, l := range lines {
		o.Items[i] = Item{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Category:  l.Product.Category,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice().Round(2),
			LineTotal: l.Total().Round(2),
		}
	}

	if req.ClientTotal != nil && !req.ClientTotal.Round(2).Equal(o.Total) {
		lg.Warn("Client total differs from server total",
			zap.String("client_total", req.ClientTotal.String()),
			zap.String("server_total", o.Total.String()),
		)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.ordersPlaced.Add(ctx, 1)
	s.revenue.Add(ctx, o.Total.InexactFloat64())
	if o.CouponCode != "" {
		s.couponRedemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("coupon", o.CouponCode)))
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.String()),
		zap.String("coupon", o.CouponCode),
	)
	return o, nil
}

// History returns the user's orders, newest first.
func (s *Service) History(ctx context.Context, userKey string) ([]Order, error) {
	if userKey == "" {
		return nil, validation.Field("user_key", "is required")
	}
	orders, err := s.orders.ListByUser(ctx, userKey)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return orders, nil
}

// List returns a page of all orders. Page numbers start at 1; out-of-range
// values are clamped.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	orders, total, err := s.orders.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return &Page{Orders: orders, Total: total, Page: page, Limit: limit}, nil
}

// resolve merges repeated products, validates quantities and fetches products
// in a single batch, preserving request order.
func (s *Service) resolve(ctx context.Context, items []LineRequest) ([]pricing.Line, error) {
	if len(items) == 0 {
		return nil, nil
	}
	items = mergeLines(items)
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines[i] = pricing.Line{Product: p, Quantity: item.Quantity}
	}
	return lines, nil
}

func (s *Service) userUsage(ctx context.Context, userKey, code string) (coupon.Usage, error) {
	if userKey == "" {
		return coupon.Usage{}, nil
	}
	u, err := s.usage.Usage(ctx, userKey, code)
	if err != nil {
		return coupon.Usage{}, errors.Wrap(err, "coupon usage")
	}
	return u, nil
}

// mergeLines combines repeated products into one line so tiers and stock are
// evaluated on the full quantity. Non-positive quantities are kept as-is for
// validation to reject.
func mergeLines(items []LineRequest) []LineRequest {
	out := make([]LineRequest, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok && item.Quantity > 0 && out[i].Quantity > 0 {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}
