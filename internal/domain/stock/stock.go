// Package stock tracks inventory adjustments and their audit log.
package stock

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNegativeStock is returned when an adjustment would leave a product with
// less than zero units.
var ErrNegativeStock = errors.New("stock cannot go below zero")

// Reasons recorded in the stock log.
const (
	ReasonManual = "manual"
	ReasonOrder  = "order"
	ReasonSeed   = "seed"
)

// LogEntry records a single stock change.
type LogEntry struct {
	ID          int64     `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Change      int       `json:"change_amount"`
	NewStock    int       `json:"new_stock_level"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Adjustment is a request to change a product's stock by Delta units.
type Adjustment struct {
	ProductID string `json:"product_id" validate:"required"`
	Delta     int    `json:"change"`
	Reason    string `json:"reason" validate:"max=100"`
}

// Repository applies stock changes atomically and reads the log.
type Repository interface {
	// Adjust adds delta to the product's stock and appends a log entry in a
	// single transaction. It returns ErrNegativeStock when the result would be
	// negative and product.ErrNotFound when the product does not exist.
	Adjust(ctx context.Context, productID string, delta int, reason string) (*LogEntry, error)
	// History returns the latest entries, newest first.
	History(ctx context.Context, limit int) ([]LogEntry, error)
}
