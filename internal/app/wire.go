package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/backoffice/internal/customers"
	"github.com/odyssey-erp/backoffice/internal/expenses"
	"github.com/odyssey-erp/backoffice/internal/invoices"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/projects"
	"github.com/odyssey-erp/backoffice/internal/quotes"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/jobs"
)

// Services bundles the document services shared by the API, worker and CLI.
type Services struct {
	Numbers   *numbering.Generator
	Customers *customers.Service
	Quotes    *quotes.Service
	Invoices  *invoices.Service
	Projects  *projects.Service
	Expenses  *expenses.Service
	Locker    *shared.Locker
}

// NewNumberStore picks the allocation store named by NUMBERING_BACKEND.
func NewNumberStore(cfg *Config, pool *pgxpool.Pool, rdb *redis.Client) (numbering.Store, error) {
	switch cfg.NumberingBackend {
	case NumberingPostgres:
		if pool == nil {
			return nil, fmt.Errorf("app: numbering backend %s needs a database pool", cfg.NumberingBackend)
		}
		return numbering.NewPostgresStore(pool), nil
	case NumberingRedis:
		if rdb == nil {
			return nil, fmt.Errorf("app: numbering backend %s needs a redis client", cfg.NumberingBackend)
		}
		return numbering.NewRedisStore(rdb), nil
	default:
		return nil, fmt.Errorf("app: unknown numbering backend %q", cfg.NumberingBackend)
	}
}

// BuildServices wires repositories, the number generator and services.
func BuildServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) (*Services, error) {
	store, err := NewNumberStore(cfg, pool, rdb)
	if err != nil {
		return nil, err
	}
	customerRepo := customers.NewRepository(pool)
	quoteRepo := quotes.NewRepository(pool)
	invoiceRepo := invoices.NewRepository(pool)
	projectRepo := projects.NewRepository(pool)
	expenseRepo := expenses.NewRepository(pool)

	gen := numbering.NewGenerator(store, shared.SystemClock,
		numbering.WithMaxAttempts(cfg.NumberingMaxAttempts),
		numbering.WithLogger(logger),
		numbering.WithExisting(numbering.KindCustomer, customerRepo),
		numbering.WithExisting(numbering.KindQuote, quoteRepo),
		numbering.WithExisting(numbering.KindInvoice, invoiceRepo),
		numbering.WithExisting(numbering.KindProject, projectRepo),
		numbering.WithExisting(numbering.KindExpense, expenseRepo),
	)

	customerSvc := customers.NewService(customerRepo, gen, shared.SystemClock, logger)
	invoiceSvc := invoices.NewService(invoiceRepo, gen, customerSvc, invoices.Options{Logger: logger, DefaultCurrency: cfg.DefaultCurrency})
	return &Services{
		Numbers:   gen,
		Customers: customerSvc,
		Quotes:    quotes.NewService(quoteRepo, gen, customerSvc, invoiceSvc, quotes.Options{Logger: logger, DefaultCurrency: cfg.DefaultCurrency}),
		Invoices:  invoiceSvc,
		Projects:  projects.NewService(projectRepo, gen, customerSvc, projects.Options{Logger: logger, DefaultCurrency: cfg.DefaultCurrency}),
		Expenses:  expenses.NewService(expenseRepo, gen, expenses.Options{Logger: logger, DefaultCurrency: cfg.DefaultCurrency}),
		Locker:    shared.NewLocker(rdb),
	}, nil
}

// SweepJob builds the expiry reconciliation job over quotes and invoices.
func (s *Services) SweepJob(cfg *Config, logger *slog.Logger, metrics *jobmetrics.Metrics) *jobs.ExpirySweepJob {
	return jobs.NewExpirySweepJob(s.Locker, jobs.SweepConfig{
		Timeout:   cfg.SweepTimeout,
		BatchSize: cfg.SweepBatchSize,
		LockTTL:   cfg.SweepLockTTL,
	}, logger, metrics,
		jobs.Sweeper{Document: "quote", Run: s.Quotes.ExpireElapsed},
		jobs.Sweeper{Document: "invoice", Run: s.Invoices.MarkOverdue},
	)
}

// Routes exposes HTTP handlers for every service.
func (s *Services) Routes(logger *slog.Logger) RouterParams {
	return RouterParams{
		CustomersHandler: customers.NewHandler(logger, s.Customers),
		QuotesHandler:    quotes.NewHandler(logger, s.Quotes),
		InvoicesHandler:  invoices.NewHandler(logger, s.Invoices),
		ProjectsHandler:  projects.NewHandler(logger, s.Projects),
		ExpensesHandler:  expenses.NewHandler(logger, s.Expenses),
		NumbersHandler:   numbering.NewHandler(logger, s.Numbers),
	}
}
