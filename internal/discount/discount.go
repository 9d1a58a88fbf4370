// Package discount composes bulk-tier savings and coupon savings into the
// payable total of a cart.
//
// Compose keeps no state between calls. Callers re-run it whenever cart
// contents, quantities, or the selected coupon change.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// Totals is the breakdown of a cart's price.
type Totals struct {
	// SubtotalBase is the cart value at base prices.
	SubtotalBase decimal.Decimal
	// BulkSavings is the sum of tier savings across lines.
	BulkSavings decimal.Decimal
	// AfterBulk is SubtotalBase minus BulkSavings, floored at zero.
	AfterBulk decimal.Decimal
	// CouponSavings never exceeds AfterBulk.
	CouponSavings decimal.Decimal
	// Total is AfterBulk minus CouponSavings.
	Total decimal.Decimal
	// CouponCriteriaUnmet is set when a coupon was supplied but the cart is
	// below its minimum order value, so it contributed nothing.
	CouponCriteriaUnmet bool
}

// Compose prices lines through the pricing engine and applies c on top of the
// bulk-adjusted subtotal. A nil coupon yields zero coupon savings. The coupon
// is assumed to be well formed; eligibility beyond the minimum order value is
// the caller's concern.
func Compose(lines []pricing.Line, c *coupon.Coupon) Totals {
	subtotal := decimal.Zero
	bulk := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.BaseTotal())
		bulk = bulk.Add(l.Savings())
	}

	afterBulk := subtotal.Sub(bulk)
	if afterBulk.IsNegative() {
		afterBulk = decimal.Zero
	}

	t := Totals{
		SubtotalBase:  subtotal,
		BulkSavings:   bulk,
		AfterBulk:     afterBulk,
		CouponSavings: decimal.Zero,
		Total:         afterBulk,
	}
	if c == nil {
		return t
	}

	if c.HasMinOrder() && afterBulk.LessThan(c.MinOrderValue) {
		t.CouponCriteriaUnmet = true
		return t
	}

	t.CouponSavings = decimal.Min(CouponSavings(c, Applicable(lines, c)), afterBulk)
	t.Total = afterBulk.Sub(t.CouponSavings)
	return t
}

// Applicable returns the tiered value of the lines c applies to: lines in the
// coupon's target category, or every line for storewide coupons.
func Applicable(lines []pricing.Line, c *coupon.Coupon) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if !c.Storewide() && l.Product.Category != c.TargetCategory {
			continue
		}
		sum = sum.Add(l.Total())
	}
	return sum
}

// CouponSavings returns the raw discount c grants on applicable, before the
// final clamp to the bulk-adjusted subtotal. A fixed discount never exceeds
// the amount it applies to.
func CouponSavings(c *coupon.Coupon, applicable decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case coupon.DiscountPercentage:
		return applicable.Mul(c.DiscountValue).Div(hundred)
	case coupon.DiscountFixed:
		return decimal.Min(c.DiscountValue, applicable)
	default:
		return decimal.Zero
	}
}
