package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// NotFoundError identifies the missing product by ID. It matches ErrNotFound
// via errors.Is.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=2000"`
	Price        decimal.Decimal `json:"price" validate:"gte=0"`
	Category     string          `json:"category" validate:"required,max=100"`
	Image        string          `json:"image" validate:"max=500"`
	Stock        int             `json:"stock" validate:"gte=0"`
	PricingTiers []PricingTier   `json:"pricing_tiers" validate:"dive"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PricingTier grants a percentage off the base price once the purchased
// quantity reaches MinQuantity.
type PricingTier struct {
	MinQuantity        int             `json:"min_quantity" validate:"gt=0"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" validate:"gte=0,lte=100"`
	// Active is nil when the flag was never set; such tiers count as active.
	Active *bool `json:"is_active,omitempty"`
}

// IsActive reports whether the tier participates in pricing.
func (t PricingTier) IsActive() bool {
	return t.Active == nil || *t.Active
}

// Filter narrows catalog listings.
type Filter struct {
	Category string
	Search   string
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
