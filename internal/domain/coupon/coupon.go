package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the applicable amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the applicable amount.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrInactive is returned when a coupon has been disabled by an admin.
	ErrInactive = errors.New("coupon is disabled")
	// ErrExpired is returned when a coupon is past its expiration date.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached is returned when the user has used the coupon
	// as many times as allowed.
	ErrPerUserLimitReached = errors.New("coupon per-user limit reached")
	// ErrFirstOrderOnly is returned when a first-order coupon is used by a
	// returning customer.
	ErrFirstOrderOnly = errors.New("coupon is valid for first orders only")
	// ErrMinOrderNotMet is returned at checkout when the bulk-adjusted
	// subtotal is below the coupon's minimum order value.
	ErrMinOrderNotMet = errors.New("coupon minimum order value not met")
	// ErrNoEligibleItems is returned at checkout when a category coupon
	// matches nothing in the cart.
	ErrNoEligibleItems = errors.New("coupon does not apply to any item in the cart")
	// ErrAlreadyExists is returned when creating a coupon whose code is taken.
	ErrAlreadyExists = errors.New("coupon already exists")
)

// Coupon is a code-based discount composed on top of bulk pricing.
type Coupon struct {
	Code          string          `json:"code" validate:"required,min=3,max=32"`
	Description   string          `json:"description" validate:"max=200"`
	DiscountType  DiscountType    `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value" validate:"gte=0"`
	// TargetCategory restricts the discount to one category. Empty means storewide.
	TargetCategory string `json:"target_category" validate:"max=100"`
	// MinOrderValue is compared to the bulk-adjusted subtotal. Zero means no minimum.
	MinOrderValue decimal.Decimal `json:"min_order_value" validate:"gte=0"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	// UsageLimit caps total redemptions. Zero means unlimited.
	UsageLimit int `json:"usage_limit" validate:"gte=0"`
	// LimitPerUser caps redemptions per user. Zero means unlimited.
	LimitPerUser  int       `json:"limit_per_user" validate:"gte=0"`
	FirstTimeOnly bool      `json:"first_time_only"`
	Active        bool      `json:"is_active"`
	TimesUsed     int       `json:"times_used"`
	CreatedAt     time.Time `json:"created_at"`
}

// Storewide reports whether the coupon applies to every category.
func (c *Coupon) Storewide() bool {
	return c.TargetCategory == ""
}

// HasMinOrder reports whether the coupon sets a minimum order value.
func (c *Coupon) HasMinOrder() bool {
	return c.MinOrderValue.IsPositive()
}

// UsesLeft returns the remaining global redemptions, or -1 when unlimited.
func (c *Coupon) UsesLeft() int {
	if c.UsageLimit <= 0 {
		return -1
	}
	return max(0, c.UsageLimit-c.TimesUsed)
}

// NormalizeCode canonicalizes a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Usage holds a user's history relevant to coupon eligibility.
type Usage struct {
	// Orders is the number of orders the user has placed.
	Orders int
	// Redemptions is how many of those orders used this coupon.
	Redemptions int
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, activeOnly bool) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
}

// UsageRepository reports per-user coupon usage.
type UsageRepository interface {
	Usage(ctx context.Context, userKey, code string) (Usage, error)
}
