package localstore

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Get(ctx context.Context, browserID, key string) ([]byte, error) {
	if !validKey(browserID, key) {
		return nil, domain.ErrNotFound
	}
	const q = `
SELECT value::text
FROM local_storage
WHERE browser_id = $1 AND key = $2
`
	var value string
	if err := r.pool.QueryRow(ctx, q, browserID, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("localstore: get browser=%s key=%s error=%v", browserID, key, err)
		return nil, err
	}
	return []byte(value), nil
}

func (r *postgresRepo) Set(ctx context.Context, browserID, key string, value []byte) error {
	if !validKey(browserID, key) {
		return errors.New("browser id and key required")
	}
	const q = `
INSERT INTO local_storage (browser_id, key, value, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (browser_id, key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at
`
	if _, err := r.pool.Exec(ctx, q, browserID, key, string(value)); err != nil {
		r.logger.Printf("localstore: set browser=%s key=%s error=%v", browserID, key, err)
		return err
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, browserID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `
DELETE FROM local_storage
WHERE browser_id = $1 AND key = ANY($2)
`
	if _, err := r.pool.Exec(ctx, q, browserID, keys); err != nil {
		r.logger.Printf("localstore: delete browser=%s keys=%v error=%v", browserID, keys, err)
		return err
	}
	return nil
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
