package clientstate

import (
	"context"
	"errors"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, owner, key string) ([]byte, error) {
	const q = `
SELECT value
FROM client_state
WHERE owner = $1 AND key = $2
`
	var value []byte
	if err := r.pool.QueryRow(ctx, q, owner, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (r *postgresRepo) Set(ctx context.Context, owner, key string, value []byte) error {
	const q = `
INSERT INTO client_state (owner, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (owner, key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, owner, key, value)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, owner, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM client_state WHERE owner = $1 AND key = $2`, owner, key)
	return err
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
