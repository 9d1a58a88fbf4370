package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/swag-store/internal/discount"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/pricing"
)

// Line is a cart item priced against the current catalog.
type Line struct {
	Product      product.Product
	Quantity     int
	UnitPrice    decimal.Decimal
	Total        decimal.Decimal
	Savings      decimal.Decimal
	BulkEligible bool
}

// View is the priced state of a cart.
type View struct {
	Lines  []Line
	Count  int
	Totals discount.Totals
}

// PricingLines converts the view back into pricing engine input.
func (v *View) PricingLines() []pricing.Line {
	out := make([]pricing.Line, len(v.Lines))
	for i, l := range v.Lines {
		out[i] = pricing.Line{Product: l.Product, Quantity: l.Quantity}
	}
	return out
}

// Service applies cart actions for a user and prices the result.
type Service struct {
	store    Store
	products product.Repository
}

// NewService creates a cart Service.
func NewService(store Store, products product.Repository) *Service {
	return &Service{store: store, products: products}
}

// View loads the user's cart and prices it. Items whose product no longer
// exists are removed from the stored cart.
func (s *Service) View(ctx context.Context, userKey string) (*View, error) {
	c, err := s.store.Load(ctx, userKey)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return s.price(ctx, userKey, c)
}

// Add puts qty units of productID into the cart.
func (s *Service) Add(ctx context.Context, userKey, productID string, qty int) (*View, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &product.NotFoundError{ProductID: productID}
		}
		return nil, errors.Wrap(err, "get product")
	}
	return s.update(ctx, userKey, func(c *Cart) { c.Add(productID, qty) })
}

// SetQuantity replaces the quantity of productID. A non-positive quantity
// removes the item.
func (s *Service) SetQuantity(ctx context.Context, userKey, productID string, qty int) (*View, error) {
	return s.update(ctx, userKey, func(c *Cart) { c.SetQuantity(productID, qty) })
}

// Remove drops productID from the cart.
func (s *Service) Remove(ctx context.Context, userKey, productID string) (*View, error) {
	return s.update(ctx, userKey, func(c *Cart) { c.Remove(productID) })
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userKey string) error {
	if err := s.store.Delete(ctx, userKey); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

func (s *Service) update(ctx context.Context, userKey string, fn func(*Cart)) (*View, error) {
	c, err := s.store.Load(ctx, userKey)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	fn(c)
	if err := s.store.Save(ctx, userKey, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return s.price(ctx, userKey, c)
}

func (s *Service) price(ctx context.Context, userKey string, c *Cart) (*View, error) {
	if c.Empty() {
		return &View{Totals: discount.Compose(nil, nil)}, nil
	}

	fetched, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	v := &View{Lines: make([]Line, 0, len(c.Items))}
	var missing []string
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			missing = append(missing, it.ProductID)
			continue
		}
		v.Lines = append(v.Lines, Line{
			Product:      p,
			Quantity:     it.Quantity,
			UnitPrice:    pricing.UnitPrice(p, it.Quantity),
			Total:        pricing.LineTotal(p, it.Quantity),
			Savings:      pricing.Savings(p, it.Quantity),
			BulkEligible: pricing.IsBulkEligible(p, it.Quantity),
		})
		v.Count += it.Quantity
	}
	if len(missing) > 0 {
		for _, id := range missing {
			c.Remove(id)
		}
		if err := s.store.Save(ctx, userKey, c); err != nil {
			return nil, errors.Wrap(err, "save pruned cart")
		}
	}

	v.Totals = discount.Compose(v.PricingLines(), nil)
	return v, nil
}
