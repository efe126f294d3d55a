package expenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const expenseColumns = `id, number, title, supplier_name, currency, status, receipt_date,
	version, created_at, updated_at, booked_at, paid_at`

func scanExpense(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Number, &d.Title, &d.SupplierName, &d.Currency, &d.Status, &d.ReceiptDate,
		&d.Version, &d.CreatedAt, &d.UpdatedAt, &d.BookedAt, &d.PaidAt)
	return d, err
}

func getExpense(ctx context.Context, q dbtx, id int64, lock bool) (Document, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	d, err := scanExpense(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("expense %d: %w", id, shared.ErrNotFound)
		}
		return Document{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, position, description, quantity, unit_price, tax_rate, discount_percent
		FROM expense_lines WHERE expense_id = $1 ORDER BY position`, id)
	if err != nil {
		return Document{}, err
	}
	d.Lines, err = pgx.CollectRows(rows, pgx.RowToStructByPos[Line])
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

// Get returns the document with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	return getExpense(ctx, r.db, id, false)
}

// List returns document headers without lines.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// NumbersInScope lists expense numbers starting with scope.
func (r *Repository) NumbersInScope(ctx context.Context, scope string) ([]string, error) {
	return db.NumbersWithPrefix(ctx, r.db, "expenses", scope)
}

func (t *txRepo) Get(ctx context.Context, id int64) (Document, error) {
	return getExpense(ctx, t.tx, id, true)
}

func (t *txRepo) Insert(ctx context.Context, d Document) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO expenses (number, title, supplier_name, currency, status,
		receipt_date, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		d.Number, d.Title, d.SupplierName, d.Currency, string(d.Status), d.ReceiptDate,
		d.Version, d.CreatedAt, d.UpdatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolationOn(err, "expenses_number_key") {
			return 0, fmt.Errorf("expense %s: %w", d.Number, numbering.ErrNumberTaken)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) ReplaceLines(ctx context.Context, expenseID int64, lines []Line) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM expense_lines WHERE expense_id = $1`, expenseID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO expense_lines (expense_id, position, description, quantity, unit_price, tax_rate, discount_percent)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`, expenseID, l.Position, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.DiscountPercent)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) Update(ctx context.Context, d Document, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE expenses SET title = $3, supplier_name = $4, status = $5,
		receipt_date = $6, booked_at = $7, paid_at = $8, updated_at = $9, version = version + 1
		WHERE id = $1 AND version = $2`,
		d.ID, expectedVersion, d.Title, d.SupplierName, string(d.Status), d.ReceiptDate,
		d.BookedAt, d.PaidAt, d.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %d version %d: %w", d.ID, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %d version %d: %w", id, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}
