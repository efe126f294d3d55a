package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/pricing"
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

const invoiceColumns = `id, number, customer_id, quote_id, quote_number, title, currency, status,
	issue_date, due_date, discount_kind, discount_value, notes, version, created_at, updated_at,
	sent_at, overdue_at, paid_at, cancelled_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var kind string
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.QuoteID, &inv.QuoteNumber, &inv.Title,
		&inv.Currency, &inv.Status, &inv.IssueDate, &inv.DueDate, &kind, &inv.Discount.Value, &inv.Notes,
		&inv.Version, &inv.CreatedAt, &inv.UpdatedAt, &inv.SentAt, &inv.OverdueAt, &inv.PaidAt, &inv.CancelledAt)
	inv.Discount.Kind = pricing.DiscountKind(kind)
	return inv, err
}

func getInvoice(ctx context.Context, q dbtx, id int64, lock bool) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
		}
		return Invoice{}, err
	}
	if inv.Lines, err = invoiceLines(ctx, q, id); err != nil {
		return Invoice{}, err
	}
	if inv.DownPayments, err = downPayments(ctx, q, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func invoiceLines(ctx context.Context, q dbtx, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, position, description, quantity, unit_price, tax_rate, discount_percent
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Position, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.DiscountPercent); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func downPayments(ctx context.Context, q dbtx, invoiceID int64) ([]DownPayment, error) {
	rows, err := q.Query(ctx, `SELECT id, description, amount, received_at
		FROM invoice_down_payments WHERE invoice_id = $1 ORDER BY received_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DownPayment{}
	for rows.Next() {
		var dp DownPayment
		if err := rows.Scan(&dp.ID, &dp.Description, &dp.Amount, &dp.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

// Get returns invoice, lines and down payments.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.db, id, false)
}

// List returns invoice headers without lines.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR customer_id = $2)
		ORDER BY issue_date DESC, id DESC LIMIT $3 OFFSET $4`,
		string(filter.Status), filter.CustomerID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// OverdueCandidates lists sent invoices whose due date lies before today,
// paged by id.
func (r *Repository) OverdueCandidates(ctx context.Context, today time.Time, afterID int64, limit int) ([]lifecycle.Candidate, error) {
	rows, err := r.db.Query(ctx, `SELECT id, number FROM invoices
		WHERE status = $1 AND due_date < $2 AND id > $3
		ORDER BY id LIMIT $4`, string(StatusSent), today, afterID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[lifecycle.Candidate])
}

// NumbersInScope lists invoice numbers starting with scope.
func (r *Repository) NumbersInScope(ctx context.Context, scope string) ([]string, error) {
	return db.NumbersWithPrefix(ctx, r.db, "invoices", scope)
}

func (t *txRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, t.tx, id, true)
}

func (t *txRepo) Insert(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (number, customer_id, quote_id, quote_number, title, currency,
		status, issue_date, due_date, discount_kind, discount_value, notes, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
		inv.Number, inv.CustomerID, inv.QuoteID, inv.QuoteNumber, inv.Title, inv.Currency, string(inv.Status),
		inv.IssueDate, inv.DueDate, string(inv.Discount.Kind), inv.Discount.Value, inv.Notes, inv.Version,
		inv.CreatedAt, inv.UpdatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolationOn(err, "invoices_number_key") {
			return 0, fmt.Errorf("invoice %s: %w", inv.Number, numbering.ErrNumberTaken)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) ReplaceLines(ctx context.Context, invoiceID int64, lines []Line) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO invoice_lines (invoice_id, position, description, quantity, unit_price, tax_rate, discount_percent)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`, invoiceID, l.Position, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.DiscountPercent)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) InsertDownPayment(ctx context.Context, invoiceID int64, dp DownPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoice_down_payments (invoice_id, description, amount, received_at)
		VALUES ($1,$2,$3,$4) RETURNING id`, invoiceID, dp.Description, dp.Amount, dp.ReceivedAt).Scan(&id)
	return id, err
}

func (t *txRepo) Update(ctx context.Context, inv Invoice, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET title = $3, currency = $4, status = $5, due_date = $6,
		discount_kind = $7, discount_value = $8, notes = $9, sent_at = $10, overdue_at = $11, paid_at = $12,
		cancelled_at = $13, updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2`,
		inv.ID, expectedVersion, inv.Title, inv.Currency, string(inv.Status), inv.DueDate, string(inv.Discount.Kind),
		inv.Discount.Value, inv.Notes, inv.SentAt, inv.OverdueAt, inv.PaidAt, inv.CancelledAt, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d version %d: %w", inv.ID, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d version %d: %w", id, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}
