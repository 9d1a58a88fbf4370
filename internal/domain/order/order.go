package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrEmptyItems is returned when an order has no line items.
var ErrEmptyItems = errors.New("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Order represents a completed customer order with pricing and discount details.
type Order struct {
	ID       string
	UserKey  string
	UserName string
	Items    []Item
	// Subtotal is the value at base prices, before any savings.
	Subtotal       decimal.Decimal
	BulkSavings    decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
	CreatedAt      time.Time
}

// Item is a priced order line. Name and Category are snapshots taken at
// checkout.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// LineRequest is a product and quantity submitted by a client.
type LineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Page is a slice of orders with the overall count.
type Page struct {
	Orders []Order
	Total  int
	Page   int
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order in one transaction: it inserts the order,
	// decrements stock for every item, appends stock log entries, and counts a
	// coupon redemption. It returns *InsufficientStockError when stock ran out
	// concurrently and coupon.ErrUsageLimitReached when the coupon was used up.
	Create(ctx context.Context, o *Order) error
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userKey string) ([]Order, error)
	// List returns one page of all orders, newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]Order, int, error)
}
