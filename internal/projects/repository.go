package projects

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

const projectColumns = `id, number, customer_id, name, description, budget, currency, status, start_date,
	end_date, version, created_at, updated_at, activated_at, paused_at, resumed_at, completed_at, archived_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Number, &p.CustomerID, &p.Name, &p.Description, &p.Budget, &p.Currency,
		&p.Status, &p.StartDate, &p.EndDate, &p.Version, &p.CreatedAt, &p.UpdatedAt, &p.ActivatedAt,
		&p.PausedAt, &p.ResumedAt, &p.CompletedAt, &p.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, shared.ErrNotFound
	}
	return p, err
}

// Get loads one project.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return Project{}, fmt.Errorf("project %d: %w", id, err)
	}
	return p, nil
}

// List returns projects ordered by number.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Project, error) {
	rows, err := r.db.Query(ctx, `SELECT `+projectColumns+` FROM projects
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR customer_id = $2)
		ORDER BY number DESC LIMIT $3 OFFSET $4`,
		string(filter.Status), filter.CustomerID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NumbersInScope lists project numbers starting with scope.
func (r *Repository) NumbersInScope(ctx context.Context, scope string) ([]string, error) {
	return db.NumbersWithPrefix(ctx, r.db, "projects", scope)
}

func (t *txRepo) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(t.tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Project{}, fmt.Errorf("project %d: %w", id, err)
	}
	return p, nil
}

func (t *txRepo) Insert(ctx context.Context, p Project) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO projects (number, customer_id, name, description, budget, currency,
		status, start_date, end_date, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		p.Number, p.CustomerID, p.Name, p.Description, p.Budget, p.Currency, string(p.Status),
		p.StartDate, p.EndDate, p.Version, p.CreatedAt, p.UpdatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolationOn(err, "projects_number_key") {
			return 0, fmt.Errorf("project %s: %w", p.Number, numbering.ErrNumberTaken)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) Update(ctx context.Context, p Project, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE projects SET customer_id = $3, name = $4, description = $5, budget = $6,
		status = $7, start_date = $8, end_date = $9, activated_at = $10, paused_at = $11, resumed_at = $12,
		completed_at = $13, archived_at = $14, updated_at = $15, version = version + 1
		WHERE id = $1 AND version = $2`,
		p.ID, expectedVersion, p.CustomerID, p.Name, p.Description, p.Budget, string(p.Status), p.StartDate,
		p.EndDate, p.ActivatedAt, p.PausedAt, p.ResumedAt, p.CompletedAt, p.ArchivedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d version %d: %w", p.ID, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d version %d: %w", id, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}
