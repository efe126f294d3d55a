package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// NumbersWithPrefix lists the number column of table for rows whose number
// starts with prefix. table must be a trusted identifier.
func NumbersWithPrefix(ctx context.Context, q Querier, table, prefix string) ([]string, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT number FROM %s WHERE number LIKE $1 || '%%'`, pgx.Identifier{table}.Sanitize()), prefix)
	if err != nil {
		return nil, fmt.Errorf("platform/db: numbers in %s: %w", table, err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("platform/db: numbers in %s: %w", table, err)
	}
	return numbers, nil
}
