package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/swag-store/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, category, image, stock, pricing_tiers, created_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		ORDER BY created_at, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (id, name, description, price, category, image, stock, pricing_tiers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, category, image, stock, pricing_tiers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			stock = EXCLUDED.stock,
			pricing_tiers = EXCLUDED.pricing_tiers
		RETURNING created_at`

	updateProductSQL = `UPDATE products SET
			name = $2, description = $3, price = $4, category = $5, image = $6, stock = $7, pricing_tiers = $8
		WHERE id = $1
		RETURNING created_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Pricing tiers are stored as a JSONB array on the product row.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products matching the filter in creation order.
func (r *ProductRepository) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, filter.Category, filter.Search)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return r.write(ctx, insertProductSQL, p)
}

// Upsert inserts or fully replaces a product.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	return r.write(ctx, upsertProductSQL, p)
}

// Update replaces every mutable field of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := r.write(ctx, updateProductSQL, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return product.ErrNotFound
	}
	return err
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) write(ctx context.Context, sql string, p *product.Product) error {
	tiers := p.PricingTiers
	if tiers == nil {
		tiers = []product.PricingTier{}
	}
	tiersJSON, err := json.Marshal(tiers)
	if err != nil {
		return errors.Wrap(err, "marshal pricing tiers")
	}

	err = r.pool.QueryRow(ctx, sql,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Image, p.Stock, tiersJSON,
	).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return errors.Wrapf(err, "write product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		tiersJSON []byte
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Image, &p.Stock, &tiersJSON, &p.CreatedAt,
	); err != nil {
		return p, err
	}
	if err := json.Unmarshal(tiersJSON, &p.PricingTiers); err != nil {
		return p, errors.Wrapf(err, "unmarshal pricing tiers of %q", p.ID)
	}
	return p, nil
}
