package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/swag-store/internal/discount"
	"github.com/xenking/swag-store/internal/domain/analytics"
	"github.com/xenking/swag-store/internal/domain/cart"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/order"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
	"github.com/xenking/swag-store/internal/domain/user"
	"github.com/xenking/swag-store/internal/pricing"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request. It maps to 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("request body too large")
	}
	return body, nil
}

// decodeBody reads a JSON object from the request body, calling fn per field.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return &requestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// Decoding.

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return nil, err
	}
	return parseDate(s)
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.Errorf("invalid date %q", s)
}

func decodeLines(d *jx.Decoder) ([]order.LineRequest, error) {
	var out []order.LineRequest
	err := d.Arr(func(d *jx.Decoder) error {
		var l order.LineRequest
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				l.ProductID, err = d.Str()
			case "quantity":
				l.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

// decodeProduct overlays the fields present in the body onto p.
func decodeProduct(d *jx.Decoder, key string, p *product.Product) error {
	var err error
	switch key {
	case "id":
		p.ID, err = d.Str()
	case "name":
		p.Name, err = d.Str()
	case "description":
		p.Description, err = decodeString(d)
	case "price":
		p.Price, err = decodeDecimal(d)
	case "category":
		p.Category, err = d.Str()
	case "image":
		p.Image, err = decodeString(d)
	case "stock":
		p.Stock, err = d.Int()
	case "pricing_tiers":
		p.PricingTiers, err = decodeTiers(d)
	default:
		err = d.Skip()
	}
	return err
}

func decodeTiers(d *jx.Decoder) ([]product.PricingTier, error) {
	tiers := []product.PricingTier{}
	if d.Next() == jx.Null {
		return tiers, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		var t product.PricingTier
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "min_quantity":
				t.MinQuantity, err = d.Int()
			case "discount_percentage":
				t.DiscountPercentage, err = decodeDecimal(d)
			case "is_active":
				var v bool
				v, err = d.Bool()
				t.Active = &v
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		tiers = append(tiers, t)
		return nil
	})
	return tiers, err
}

// decodeCoupon overlays the fields present in the body onto c.
func decodeCoupon(d *jx.Decoder, key string, c *coupon.Coupon) error {
	var err error
	switch key {
	case "code":
		c.Code, err = d.Str()
	case "description":
		c.Description, err = decodeString(d)
	case "discount_type":
		var v string
		v, err = d.Str()
		c.DiscountType = coupon.DiscountType(v)
	case "discount_value":
		c.DiscountValue, err = decodeDecimal(d)
	case "target_category":
		c.TargetCategory, err = decodeString(d)
	case "min_order_value":
		if d.Next() == jx.Null {
			c.MinOrderValue = decimal.Zero
			return d.Null()
		}
		c.MinOrderValue, err = decodeDecimal(d)
	case "expiration_date", "expires_at":
		c.ExpiresAt, err = decodeTime(d)
	case "usage_limit":
		c.UsageLimit, err = decodeOptInt(d)
	case "limit_per_user":
		c.LimitPerUser, err = decodeOptInt(d)
	case "first_time_only":
		c.FirstTimeOnly, err = d.Bool()
	case "is_active":
		c.Active, err = d.Bool()
	default:
		err = d.Skip()
	}
	return err
}

func decodeOptInt(d *jx.Decoder) (int, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Int()
}

// Encoding.

func money(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.StringFixed(2))
}

func number(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.String())
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func optString(e *jx.Encoder, v string) {
	if v == "" {
		e.Null()
		return
	}
	e.Str(v)
}

func optInt(e *jx.Encoder, v int) {
	if v <= 0 {
		e.Null()
		return
	}
	e.Int(v)
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("description")
		e.Str(p.Description)
		e.FieldStart("price")
		money(e, p.Price)
		e.FieldStart("category")
		e.Str(p.Category)
		e.FieldStart("image")
		e.Str(h.imageURL(p.Image))
		e.FieldStart("stock")
		e.Int(p.Stock)
		e.FieldStart("pricing_tiers")
		e.ArrStart()
		for _, t := range p.PricingTiers {
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("min_quantity")
				e.Int(t.MinQuantity)
				e.FieldStart("discount_percentage")
				number(e, t.DiscountPercentage)
				e.FieldStart("is_active")
				e.Bool(t.IsActive())
			})
		}
		e.ArrEnd()
		e.FieldStart("entry_tier")
		if t := pricing.BestEntryTier(p); t != nil {
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("min_quantity")
				e.Int(t.MinQuantity)
				e.FieldStart("discount_percentage")
				number(e, t.DiscountPercentage)
				e.FieldStart("unit_price")
				money(e, t.UnitPrice)
			})
		} else {
			e.Null()
		}
		if !p.CreatedAt.IsZero() {
			e.FieldStart("created_at")
			timestamp(e, p.CreatedAt)
		}
	})
}

func encodeTotals(e *jx.Encoder, t discount.Totals) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("subtotal")
		money(e, t.SubtotalBase)
		e.FieldStart("bulk_savings")
		money(e, t.BulkSavings)
		e.FieldStart("after_bulk")
		money(e, t.AfterBulk)
		e.FieldStart("coupon_savings")
		money(e, t.CouponSavings)
		e.FieldStart("total")
		money(e, t.Total)
		e.FieldStart("coupon_criteria_unmet")
		e.Bool(t.CouponCriteriaUnmet)
	})
}

func (h *Handler) encodeLine(e *jx.Encoder, p product.Product, qty int) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("product")
		h.encodeProduct(e, p)
		e.FieldStart("quantity")
		e.Int(qty)
		e.FieldStart("unit_price")
		money(e, pricing.UnitPrice(p, qty))
		e.FieldStart("line_total")
		money(e, pricing.LineTotal(p, qty))
		e.FieldStart("savings")
		money(e, pricing.Savings(p, qty))
		e.FieldStart("bulk_eligible")
		e.Bool(pricing.IsBulkEligible(p, qty))
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, userKey string, v *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("user_key")
		e.Str(userKey)
		e.FieldStart("items")
		e.ArrStart()
		for _, l := range v.Lines {
			h.encodeLine(e, l.Product, l.Quantity)
		}
		e.ArrEnd()
		e.FieldStart("count")
		e.Int(v.Count)
		e.FieldStart("totals")
		encodeTotals(e, v.Totals)
	})
}

func (h *Handler) encodeQuote(e *jx.Encoder, q *order.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("items")
		e.ArrStart()
		for _, l := range q.Lines {
			h.encodeLine(e, l.Product, l.Quantity)
		}
		e.ArrEnd()
		e.FieldStart("coupon")
		if q.Coupon != nil {
			encodeCoupon(e, *q.Coupon)
		} else {
			e.Null()
		}
		e.FieldStart("totals")
		encodeTotals(e, q.Totals)
	})
}

func encodeCouponFields(e *jx.Encoder, c coupon.Coupon) {
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("discount_type")
	e.Str(string(c.DiscountType))
	e.FieldStart("discount_value")
	number(e, c.DiscountValue)
	e.FieldStart("target_category")
	optString(e, c.TargetCategory)
	e.FieldStart("min_order_value")
	if c.HasMinOrder() {
		money(e, c.MinOrderValue)
	} else {
		e.Null()
	}
	e.FieldStart("expiration_date")
	if c.ExpiresAt != nil {
		timestamp(e, *c.ExpiresAt)
	} else {
		e.Null()
	}
	e.FieldStart("usage_limit")
	optInt(e, c.UsageLimit)
	e.FieldStart("limit_per_user")
	optInt(e, c.LimitPerUser)
	e.FieldStart("first_time_only")
	e.Bool(c.FirstTimeOnly)
	e.FieldStart("is_active")
	e.Bool(c.Active)
	e.FieldStart("times_used")
	e.Int(c.TimesUsed)
}

func encodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		encodeCouponFields(e, c)
		if !c.CreatedAt.IsZero() {
			e.FieldStart("created_at")
			timestamp(e, c.CreatedAt)
		}
	})
}

func encodeOffer(e *jx.Encoder, o order.Offer) {
	e.Obj(func(e *jx.Encoder) {
		encodeCouponFields(e, o.Coupon)
		e.FieldStart("uses_left")
		if o.UsesLeft < 0 {
			e.Null()
		} else {
			e.Int(o.UsesLeft)
		}
		e.FieldStart("is_applicable")
		e.Bool(o.Applicable)
		e.FieldStart("error_reason")
		optString(e, o.Reason)
		e.FieldStart("potential_savings")
		money(e, o.Savings)
	})
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("order_id")
		e.Str(o.ID)
		e.FieldStart("user_key")
		e.Str(o.UserKey)
		e.FieldStart("user_name")
		e.Str(o.UserName)
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range o.Items {
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("product_id")
				e.Str(it.ProductID)
				e.FieldStart("name")
				e.Str(it.Name)
				e.FieldStart("category")
				e.Str(it.Category)
				e.FieldStart("quantity")
				e.Int(it.Quantity)
				e.FieldStart("price")
				money(e, it.UnitPrice)
				e.FieldStart("line_total")
				money(e, it.LineTotal)
			})
		}
		e.ArrEnd()
		e.FieldStart("subtotal")
		money(e, o.Subtotal)
		e.FieldStart("bulk_savings")
		money(e, o.BulkSavings)
		e.FieldStart("discount_amount")
		money(e, o.DiscountAmount)
		e.FieldStart("total_amount")
		money(e, o.Total)
		e.FieldStart("coupon_code_used")
		optString(e, o.CouponCode)
		e.FieldStart("status")
		e.Str("completed")
		e.FieldStart("timestamp")
		timestamp(e, o.CreatedAt)
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(e, o)
	}
	e.ArrEnd()
}

func encodeStockEntry(e *jx.Encoder, l stock.LogEntry) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Int64(l.ID)
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("product_name")
		e.Str(l.ProductName)
		e.FieldStart("change_amount")
		e.Int(l.Change)
		e.FieldStart("new_stock_level")
		e.Int(l.NewStock)
		e.FieldStart("reason")
		e.Str(l.Reason)
		e.FieldStart("timestamp")
		timestamp(e, l.CreatedAt)
	})
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("key")
		e.Str(u.Key)
		e.FieldStart("name")
		e.Str(u.Name)
		e.FieldStart("created_at")
		timestamp(e, u.CreatedAt)
	})
}

func encodeSummary(e *jx.Encoder, s *analytics.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("from")
		e.Str(s.From.Format(time.DateOnly))
		e.FieldStart("to")
		// Summary.To is exclusive.
		e.Str(s.To.AddDate(0, 0, -1).Format(time.DateOnly))
		e.FieldStart("total_revenue")
		money(e, s.Totals.Revenue)
		e.FieldStart("total_orders")
		e.Int(s.Totals.Orders)
		e.FieldStart("total_discounts")
		money(e, s.Totals.Discounts)
		e.FieldStart("total_bulk_savings")
		money(e, s.Totals.BulkSavings)
		e.FieldStart("revenue_trends")
		e.ArrStart()
		for _, d := range s.RevenueTrends {
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("date")
				e.Str(d.Day.Format(time.DateOnly))
				e.FieldStart("revenue")
				money(e, d.Revenue)
				e.FieldStart("orders")
				e.Int(d.Orders)
			})
		}
		e.ArrEnd()
		e.FieldStart("top_products")
		e.ArrStart()
		for _, p := range s.TopProducts {
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("product_id")
				e.Str(p.ProductID)
				e.FieldStart("name")
				e.Str(p.Name)
				e.FieldStart("quantity")
				e.Int(p.Quantity)
				e.FieldStart("revenue")
				money(e, p.Revenue)
			})
		}
		e.ArrEnd()
		e.FieldStart("coupon_usage")
		e.ArrStart()
		for _, c := range s.CouponUsage {
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("code")
				e.Str(c.Code)
				e.FieldStart("uses")
				e.Int(c.Uses)
				e.FieldStart("discount")
				money(e, c.Discount)
			})
		}
		e.ArrEnd()
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return v, nil
}
