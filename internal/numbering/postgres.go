package numbering

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
)

const allocateSQL = `
INSERT INTO number_sequences (scope, last_value, updated_at)
VALUES ($1, $2::bigint + 1, NOW())
ON CONFLICT (scope) DO UPDATE
SET last_value = GREATEST(number_sequences.last_value, $2::bigint) + 1,
    updated_at = NOW()
RETURNING last_value`

// PostgresStore keeps one row per scope. The upsert takes the row lock, so
// concurrent allocations in the same scope are serialised by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Allocate implements Store.
func (s *PostgresStore) Allocate(ctx context.Context, scope string, floor int64) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, allocateSQL, scope, floor).Scan(&n); err != nil {
		if db.IsRetryable(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return n, nil
}
