package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/swag-store/internal/validation"
)

var hundred = decimal.NewFromInt(100)

// Check verifies that c may be redeemed by a user with the given usage at
// time now. Failures are reported in a fixed order: disabled, expired, global
// limit, per-user limit, first-order restriction. The minimum order value is
// not checked here because it depends on the cart.
func Check(c *Coupon, usage Usage, now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit > 0 && c.TimesUsed >= c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.LimitPerUser > 0 && usage.Redemptions >= c.LimitPerUser {
		return ErrPerUserLimitReached
	}
	if c.FirstTimeOnly && usage.Orders > 0 {
		return ErrFirstOrderOnly
	}
	return nil
}

// Reason turns an eligibility error into the short text shown next to an
// unavailable coupon.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInactive):
		return "Coupon is disabled"
	case errors.Is(err, ErrExpired):
		return "Expired"
	case errors.Is(err, ErrUsageLimitReached):
		return "No uses left"
	case errors.Is(err, ErrPerUserLimitReached):
		return "You have already used this coupon"
	case errors.Is(err, ErrFirstOrderOnly):
		return "Valid for first orders only"
	case errors.Is(err, ErrNoEligibleItems):
		return "No eligible items in cart"
	default:
		return "Not applicable"
	}
}

// Validate checks a coupon definition before it is created or updated and
// normalizes its code.
func Validate(c *Coupon) error {
	c.Code = NormalizeCode(c.Code)
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(hundred) {
		return validation.Field("discount_value", "must be at most 100 for percentage coupons")
	}
	return nil
}
