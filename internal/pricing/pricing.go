// Package pricing resolves tiered (bulk) prices for catalog products.
//
// All functions are pure: they read the product and quantity supplied by the
// caller and never round. Currency rounding belongs to presentation only.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/swag-store/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// TierInfo describes a promotional tier, e.g. "Buy 5+ save 10%".
type TierInfo struct {
	MinQuantity        int
	DiscountPercentage decimal.Decimal
	UnitPrice          decimal.Decimal
}

// UnitPrice returns the effective unit price of p when buying quantity items.
// Among active tiers whose threshold the quantity meets, the one with the
// largest MinQuantity wins, regardless of its discount depth.
func UnitPrice(p product.Product, quantity int) decimal.Decimal {
	tier := appliedTier(p.PricingTiers, quantity)
	if tier == nil {
		return p.Price
	}
	return discounted(p.Price, tier.DiscountPercentage)
}

// LineTotal returns UnitPrice(p, quantity) * quantity.
func LineTotal(p product.Product, quantity int) decimal.Decimal {
	return UnitPrice(p, quantity).Mul(decimal.NewFromInt(int64(quantity)))
}

// BestEntryTier returns the easiest-to-reach active tier, used to advertise
// bulk discounts. Unlike UnitPrice it picks the smallest MinQuantity. It
// returns nil when the product has no active tiers.
func BestEntryTier(p product.Product) *TierInfo {
	var entry *product.PricingTier
	for i := range p.PricingTiers {
		t := &p.PricingTiers[i]
		if !t.IsActive() {
			continue
		}
		if entry == nil || t.MinQuantity < entry.MinQuantity {
			entry = t
		}
	}
	if entry == nil {
		return nil
	}
	return &TierInfo{
		MinQuantity:        entry.MinQuantity,
		DiscountPercentage: entry.DiscountPercentage,
		UnitPrice:          discounted(p.Price, entry.DiscountPercentage),
	}
}

// IsBulkEligible reports whether quantity reaches the lowest active tier
// threshold. It does not check which tier UnitPrice would select.
func IsBulkEligible(p product.Product, quantity int) bool {
	entry := BestEntryTier(p)
	return entry != nil && quantity >= entry.MinQuantity
}

// Savings returns how much cheaper the line is compared to the base price,
// floored at zero.
func Savings(p product.Product, quantity int) decimal.Decimal {
	base := p.Price.Mul(decimal.NewFromInt(int64(quantity)))
	saved := base.Sub(LineTotal(p, quantity))
	if saved.IsNegative() {
		return decimal.Zero
	}
	return saved
}

// appliedTier returns the active tier with the highest threshold that
// quantity satisfies. Equal thresholds resolve to the first tier in input
// order.
func appliedTier(tiers []product.PricingTier, quantity int) *product.PricingTier {
	var best *product.PricingTier
	for i := range tiers {
		t := &tiers[i]
		if !t.IsActive() || quantity < t.MinQuantity {
			continue
		}
		if best == nil || t.MinQuantity > best.MinQuantity {
			best = t
		}
	}
	return best
}

// discounted applies a percentage discount: price * (1 - pct/100).
func discounted(price, pct decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred)))
}

// Line is one cart line: a product snapshot and the quantity being bought.
type Line struct {
	Product  product.Product
	Quantity int
}

// UnitPrice returns the tiered unit price for the line.
func (l Line) UnitPrice() decimal.Decimal {
	return UnitPrice(l.Product, l.Quantity)
}

// Total returns the tiered line total.
func (l Line) Total() decimal.Decimal {
	return LineTotal(l.Product, l.Quantity)
}

// BaseTotal returns the line total at the undiscounted base price.
func (l Line) BaseTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Savings returns the bulk savings for the line.
func (l Line) Savings() decimal.Decimal {
	return Savings(l.Product, l.Quantity)
}
