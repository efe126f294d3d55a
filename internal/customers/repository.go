package customers

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
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const customerColumns = `id, public_id, number, name, email, street, postal_code, city, country,
	payment_terms_days, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.PublicID, &c.Number, &c.Name, &c.Email, &c.Street, &c.PostalCode,
		&c.City, &c.Country, &c.PaymentTermsDays, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Insert stores a new customer.
func (r *Repository) Insert(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO customers (public_id, number, name, email, street, postal_code,
		city, country, payment_terms_days, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		c.PublicID, c.Number, c.Name, c.Email, c.Street, c.PostalCode, c.City, c.Country,
		c.PaymentTermsDays, c.CreatedAt, c.UpdatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolationOn(err, "customers_number_key") {
			return 0, fmt.Errorf("customer %s: %w", c.Number, numbering.ErrNumberTaken)
		}
		return 0, err
	}
	return id, nil
}

// Get loads one customer.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
		}
		return Customer{}, err
	}
	return c, nil
}

// List returns customers ordered by number.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR number ILIKE $1 || '%')
		ORDER BY number LIMIT $2 OFFSET $3`, filter.Search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NumbersInScope lists customer numbers starting with scope.
func (r *Repository) NumbersInScope(ctx context.Context, scope string) ([]string, error) {
	return db.NumbersWithPrefix(ctx, r.db, "customers", scope)
}
