package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/swag-store/internal/domain/coupon"
)

const (
	couponColumns = `code, description, discount_type, discount_value, target_category, min_order_value,
		expires_at, usage_limit, limit_per_user, first_time_only, is_active, times_used, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons
		WHERE NOT $1 OR is_active
		ORDER BY created_at DESC, code`

	insertCouponSQL = `INSERT INTO coupons (code, description, discount_type, discount_value, target_category,
			min_order_value, expires_at, usage_limit, limit_per_user, first_time_only, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING times_used, created_at`

	upsertCouponSQL = `INSERT INTO coupons (code, description, discount_type, discount_value, target_category,
			min_order_value, expires_at, usage_limit, limit_per_user, first_time_only, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			target_category = EXCLUDED.target_category,
			min_order_value = EXCLUDED.min_order_value,
			expires_at = EXCLUDED.expires_at,
			usage_limit = EXCLUDED.usage_limit,
			limit_per_user = EXCLUDED.limit_per_user,
			first_time_only = EXCLUDED.first_time_only,
			is_active = EXCLUDED.is_active
		RETURNING times_used, created_at`

	updateCouponSQL = `UPDATE coupons SET
			description = $2, discount_type = $3, discount_value = $4, target_category = $5,
			min_order_value = $6, expires_at = $7, usage_limit = $8, limit_per_user = $9,
			first_time_only = $10, is_active = $11
		WHERE code = $1
		RETURNING times_used, created_at`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = UPPER($1)`

	couponUsageSQL = `SELECT COUNT(*), COUNT(*) FILTER (WHERE coupon_code = UPPER($2))
		FROM orders WHERE user_key = $1`
)

var (
	_ coupon.Repository      = (*CouponRepository)(nil)
	_ coupon.UsageRepository = (*CouponRepository)(nil)
)

// CouponRepository implements coupon.Repository and coupon.UsageRepository
// backed by PostgreSQL. Codes are stored upper-case.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), regardless of
// whether it is active. Returns coupon.ErrInvalidCoupon when none exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

// List returns coupons, newest first. With activeOnly set, disabled coupons
// are skipped.
func (r *CouponRepository) List(ctx context.Context, activeOnly bool) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL, activeOnly)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a new coupon. Returns coupon.ErrAlreadyExists when the code
// is taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.write(ctx, insertCouponSQL, c)
	if isUniqueViolation(err) {
		return coupon.ErrAlreadyExists
	}
	return err
}

// Upsert inserts a coupon or replaces the definition of an existing one,
// keeping its usage counter.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	return r.write(ctx, upsertCouponSQL, c)
}

// Update replaces the definition of an existing coupon. Returns
// coupon.ErrInvalidCoupon when the code is unknown.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	err := r.write(ctx, updateCouponSQL, c)
	if errors.Is(err, pgx.ErrNoRows) {
		return coupon.ErrInvalidCoupon
	}
	return err
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return errors.Wrapf(err, "delete coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrInvalidCoupon
	}
	return nil
}

// Usage counts the user's orders and how many of them used code.
func (r *CouponRepository) Usage(ctx context.Context, userKey, code string) (coupon.Usage, error) {
	var u coupon.Usage
	if err := r.pool.QueryRow(ctx, couponUsageSQL, userKey, code).Scan(&u.Orders, &u.Redemptions); err != nil {
		return coupon.Usage{}, errors.Wrapf(err, "coupon usage for %q", code)
	}
	return u, nil
}

func (r *CouponRepository) write(ctx context.Context, sql string, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, sql,
		coupon.NormalizeCode(c.Code), c.Description, string(c.DiscountType), c.DiscountValue, c.TargetCategory,
		c.MinOrderValue, c.ExpiresAt, c.UsageLimit, c.LimitPerUser, c.FirstTimeOnly, c.Active,
	).Scan(&c.TimesUsed, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return errors.Wrapf(err, "write coupon %q", c.Code)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &c.DiscountValue, &c.TargetCategory, &c.MinOrderValue,
		&c.ExpiresAt, &c.UsageLimit, &c.LimitPerUser, &c.FirstTimeOnly, &c.Active, &c.TimesUsed, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
