// Package cart holds per-user shopping cart state.
//
// A Cart only records product IDs and quantities. Prices are resolved against
// the live catalog every time the cart is viewed, so tier or price edits are
// reflected immediately.
package cart

import (
	"context"
	"slices"
)

// Item is a product reference with a quantity.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is an explicit state container for one user's cart.
type Cart struct {
	Items []Item `json:"items"`
}

// Add increases the quantity of productID by qty, appending a new item when
// the product is not yet in the cart. A non-positive qty adds one.
func (c *Cart) Add(productID string, qty int) {
	if qty <= 0 {
		qty = 1
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity += qty
		return
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
}

// SetQuantity replaces the quantity of productID. A non-positive qty removes
// the item. It reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
		return true
	}
	c.Items[i].Quantity = qty
	return true
}

// Remove drops productID from the cart. It reports whether anything changed.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Count returns the total number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Empty reports whether the cart has no items.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// ProductIDs returns the IDs of all items in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	return ids
}

func (c *Cart) index(productID string) int {
	return slices.IndexFunc(c.Items, func(it Item) bool {
		return it.ProductID == productID
	})
}

// Store is the persistence boundary for carts. Load returns an empty cart
// when the user has none.
type Store interface {
	Load(ctx context.Context, userKey string) (*Cart, error)
	Save(ctx context.Context, userKey string, c *Cart) error
	Delete(ctx context.Context, userKey string) error
}
