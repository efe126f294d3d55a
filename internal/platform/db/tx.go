package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
// Serialization failures surface as shared.ErrConcurrentModification.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return concurrency(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return concurrency(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

func concurrency(err error) error {
	if IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", shared.ErrConcurrentModification, err)
	}
	return err
}
