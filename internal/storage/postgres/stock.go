package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
)

const (
	adjustStockSQL = `UPDATE products SET stock = stock + $2
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING name, stock`

	currentStockSQL = `SELECT stock FROM products WHERE id = $1`

	insertStockLogSQL = `INSERT INTO stock_log (product_id, product_name, change_amount, new_stock, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	stockHistorySQL = `SELECT id, product_id, product_name, change_amount, new_stock, reason, created_at
		FROM stock_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1`
)

var _ stock.Repository = (*StockRepository)(nil)

// StockRepository implements stock.Repository backed by PostgreSQL.
type StockRepository struct {
	pool *pgxpool.Pool
}

// NewStockRepository returns a StockRepository that uses the given pool.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// Adjust changes stock and appends a log entry in one transaction.
func (r *StockRepository) Adjust(ctx context.Context, productID string, delta int, reason string) (*stock.LogEntry, error) {
	var entry *stock.LogEntry
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		entry, err = adjustStock(ctx, tx, productID, delta, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// History returns the latest stock changes, newest first.
func (r *StockRepository) History(ctx context.Context, limit int) ([]stock.LogEntry, error) {
	rows, err := r.pool.Query(ctx, stockHistorySQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "stock history")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stock.LogEntry, error) {
		var e stock.LogEntry
		err := row.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.Change, &e.NewStock, &e.Reason, &e.CreatedAt)
		return e, err
	})
}

// adjustStock applies delta within tx. It returns product.ErrNotFound for an
// unknown product and stock.ErrNegativeStock when the result would drop below
// zero; in the latter case the current level is reported through the
// returned entry's NewStock.
func adjustStock(ctx context.Context, tx pgx.Tx, productID string, delta int, reason string) (*stock.LogEntry, error) {
	e := &stock.LogEntry{ProductID: productID, Change: delta, Reason: reason}

	err := tx.QueryRow(ctx, adjustStockSQL, productID, delta).Scan(&e.ProductName, &e.NewStock)
	if errors.Is(err, pgx.ErrNoRows) {
		var current int
		if err := tx.QueryRow(ctx, currentStockSQL, productID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, product.ErrNotFound
			}
			return nil, errors.Wrapf(err, "read stock of %q", productID)
		}
		e.NewStock = current
		return e, stock.ErrNegativeStock
	}
	if err != nil {
		return nil, errors.Wrapf(err, "adjust stock of %q", productID)
	}

	if err := tx.QueryRow(ctx, insertStockLogSQL,
		e.ProductID, e.ProductName, e.Change, e.NewStock, e.Reason,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return nil, errors.Wrapf(err, "log stock change of %q", productID)
	}
	return e, nil
}
