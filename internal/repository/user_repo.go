package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// IsPremium reports the subscription flag maintained by billing. Unknown
// users are treated as free.
func (r *UserRepo) IsPremium(ctx context.Context, userID int64) (bool, error) {
	var premium bool
	err := r.pool.QueryRow(ctx, `SELECT is_premium FROM users WHERE id = $1`, userID).Scan(&premium)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return premium, err
}
