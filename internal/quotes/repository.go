package quotes

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

const quoteColumns = `id, number, customer_id, title, currency, status, issue_date, valid_until,
	discount_kind, discount_value, notes, invoice_id, version, created_at, updated_at,
	sent_at, accepted_at, rejected_at, expired_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	var kind string
	err := row.Scan(&q.ID, &q.Number, &q.CustomerID, &q.Title, &q.Currency, &q.Status, &q.IssueDate,
		&q.ValidUntil, &kind, &q.Discount.Value, &q.Notes, &q.InvoiceID, &q.Version, &q.CreatedAt,
		&q.UpdatedAt, &q.SentAt, &q.AcceptedAt, &q.RejectedAt, &q.ExpiredAt)
	q.Discount.Kind = pricing.DiscountKind(kind)
	return q, err
}

func getQuote(ctx context.Context, q dbtx, id int64, lock bool) (Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	quote, err := scanQuote(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, fmt.Errorf("quote %d: %w", id, shared.ErrNotFound)
		}
		return Quote{}, err
	}
	lines, err := quoteLines(ctx, q, id)
	if err != nil {
		return Quote{}, err
	}
	quote.Lines = lines
	return quote, nil
}

func quoteLines(ctx context.Context, q dbtx, quoteID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, position, description, quantity, unit_price, tax_rate, discount_percent
		FROM quote_lines WHERE quote_id = $1 ORDER BY position`, quoteID)
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

// Get returns quote and lines.
func (r *Repository) Get(ctx context.Context, id int64) (Quote, error) {
	return getQuote(ctx, r.db, id, false)
}

// List returns quote headers without lines.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	rows, err := r.db.Query(ctx, `SELECT `+quoteColumns+` FROM quotes
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR customer_id = $2)
		ORDER BY issue_date DESC, id DESC LIMIT $3 OFFSET $4`,
		string(filter.Status), filter.CustomerID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ExpiryCandidates lists sent quotes whose validity ended before today,
// paged by id.
func (r *Repository) ExpiryCandidates(ctx context.Context, today time.Time, afterID int64, limit int) ([]lifecycle.Candidate, error) {
	rows, err := r.db.Query(ctx, `SELECT id, number FROM quotes
		WHERE status = $1 AND valid_until < $2 AND id > $3
		ORDER BY id LIMIT $4`, string(StatusSent), today, afterID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[lifecycle.Candidate])
}

// NumbersInScope lists quote numbers starting with scope.
func (r *Repository) NumbersInScope(ctx context.Context, scope string) ([]string, error) {
	return db.NumbersWithPrefix(ctx, r.db, "quotes", scope)
}

func (t *txRepo) Get(ctx context.Context, id int64) (Quote, error) {
	return getQuote(ctx, t.tx, id, true)
}

func (t *txRepo) Insert(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO quotes (number, customer_id, title, currency, status, issue_date,
		valid_until, discount_kind, discount_value, notes, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		q.Number, q.CustomerID, q.Title, q.Currency, string(q.Status), q.IssueDate, q.ValidUntil,
		string(q.Discount.Kind), q.Discount.Value, q.Notes, q.Version, q.CreatedAt, q.UpdatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolationOn(err, "quotes_number_key") {
			return 0, fmt.Errorf("quote %s: %w", q.Number, numbering.ErrNumberTaken)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) ReplaceLines(ctx context.Context, quoteID int64, lines []Line) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, quoteID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO quote_lines (quote_id, position, description, quantity, unit_price, tax_rate, discount_percent)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`, quoteID, l.Position, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.DiscountPercent)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) Update(ctx context.Context, q Quote, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE quotes SET title = $3, currency = $4, status = $5, valid_until = $6,
		discount_kind = $7, discount_value = $8, notes = $9, invoice_id = $10, sent_at = $11,
		accepted_at = $12, rejected_at = $13, expired_at = $14, updated_at = $15, version = version + 1
		WHERE id = $1 AND version = $2`,
		q.ID, expectedVersion, q.Title, q.Currency, string(q.Status), q.ValidUntil, string(q.Discount.Kind),
		q.Discount.Value, q.Notes, q.InvoiceID, q.SentAt, q.AcceptedAt, q.RejectedAt, q.ExpiredAt, q.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d version %d: %w", q.ID, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM quotes WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d version %d: %w", id, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}
