package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/swag-store/internal/domain/user"
)

const upsertUserSQL = `INSERT INTO users (user_key, name) VALUES ($1, $2)
	ON CONFLICT (user_key) DO UPDATE SET name = EXCLUDED.name
	RETURNING created_at`

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Upsert registers the guest or renames an existing one.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	if err := r.pool.QueryRow(ctx, upsertUserSQL, u.Key, u.Name).Scan(&u.CreatedAt); err != nil {
		return errors.Wrapf(err, "upsert user %q", u.Key)
	}
	return nil
}
