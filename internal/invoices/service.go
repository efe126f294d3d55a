package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/customers"
	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
	OverdueCandidates(ctx context.Context, today time.Time, afterID int64, limit int) ([]lifecycle.Candidate, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Invoice, error)
	Insert(ctx context.Context, inv Invoice) (int64, error)
	ReplaceLines(ctx context.Context, invoiceID int64, lines []Line) error
	InsertDownPayment(ctx context.Context, invoiceID int64, dp DownPayment) (int64, error)
	Update(ctx context.Context, inv Invoice, expectedVersion int64) error
	Delete(ctx context.Context, id, expectedVersion int64) error
}

// NumberIssuer hands out invoice numbers.
type NumberIssuer interface {
	Issue(ctx context.Context, kind numbering.Kind, store func(ctx context.Context, number string) error) (string, error)
}

// Options tunes Service.
type Options struct {
	Clock           shared.Clock
	Logger          *slog.Logger
	DefaultCurrency string
}

// Service orchestrates invoice flows.
type Service struct {
	repo            RepositoryPort
	numbers         NumberIssuer
	customers       customers.Lookup
	clock           shared.Clock
	logger          *slog.Logger
	defaultCurrency string
}

// NewService constructs the invoice service.
func NewService(repo RepositoryPort, numbers NumberIssuer, lookup customers.Lookup, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "CHF"
	}
	return &Service{
		repo:            repo,
		numbers:         numbers,
		customers:       lookup,
		clock:           opts.Clock,
		logger:          opts.Logger.With(slog.String("module", "invoices")),
		defaultCurrency: opts.DefaultCurrency,
	}
}

// Create validates the request, derives the due date from the customer's
// payment terms when absent and stores the draft.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Invoice, error) {
	return s.create(ctx, req, nil, "")
}

// DraftFromQuote creates a draft invoice carrying the lines and discount of a quote.
func (s *Service) DraftFromQuote(ctx context.Context, draft QuoteDraft) (Invoice, error) {
	quoteID := draft.QuoteID
	return s.create(ctx, CreateRequest{
		CustomerID: draft.CustomerID,
		Title:      draft.Title,
		Currency:   draft.Currency,
		Discount:   draft.Discount,
		Lines:      draft.Lines,
	}, &quoteID, draft.QuoteNumber)
}

func (s *Service) create(ctx context.Context, req CreateRequest, quoteID *int64, quoteNumber string) (Invoice, error) {
	if err := pricing.ValidateText("title", req.Title); err != nil {
		return Invoice{}, err
	}
	currency, err := pricing.ResolveCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return Invoice{}, err
	}
	if err := req.Discount.Validate(); err != nil {
		return Invoice{}, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return Invoice{}, err
	}
	customer, err := s.customers.Customer(ctx, req.CustomerID)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: customer: %w", err)
	}
	now := s.clock.Now()
	issue := shared.DateOnly(now)
	if !req.IssueDate.IsZero() {
		issue = shared.DateOnly(req.IssueDate)
	}
	due := issue.AddDate(0, 0, customer.PaymentTermsDays)
	if !req.DueDate.IsZero() {
		due = shared.DateOnly(req.DueDate)
	}
	if due.Before(issue) {
		return Invoice{}, fmt.Errorf("%w: due_date must not precede issue_date", shared.ErrValidation)
	}
	inv := Invoice{
		CustomerID:   req.CustomerID,
		QuoteID:      quoteID,
		QuoteNumber:  quoteNumber,
		Title:        strings.TrimSpace(req.Title),
		Currency:     currency,
		Status:       Machine.Initial(),
		IssueDate:    issue,
		DueDate:      due,
		Discount:     req.Discount.OrNone(),
		Notes:        req.Notes,
		DownPayments: []DownPayment{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	number, err := s.numbers.Issue(ctx, numbering.KindInvoice, func(ctx context.Context, number string) error {
		inv.Number = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.Insert(ctx, inv)
			if err != nil {
				return err
			}
			inv.ID = id
			return tx.ReplaceLines(ctx, id, lines)
		})
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: create: %w", err)
	}
	inv.Lines = lines
	s.logger.Info("invoice created", slog.Int64("id", inv.ID), slog.String("number", number), slog.String("quote", quoteNumber))
	return inv, nil
}

// Get returns one invoice with lines and down payments.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// ReplaceLines swaps the line set and optionally the discount of a draft.
func (s *Service) ReplaceLines(ctx context.Context, id int64, req ReplaceLinesRequest) (Invoice, error) {
	lines, err := parseLines(req.Lines)
	if err != nil {
		return Invoice{}, err
	}
	if req.Discount != nil {
		if err := req.Discount.Validate(); err != nil {
			return Invoice{}, err
		}
	}
	var out Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanEdit(inv); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		if req.Discount != nil {
			inv.Discount = req.Discount.OrNone()
		}
		version := inv.Version
		inv.UpdatedAt = s.clock.Now()
		if err := tx.Update(ctx, inv, version); err != nil {
			return err
		}
		inv.Version = version + 1
		inv.Lines = lines
		out = inv
		return nil
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: replace lines of %d: %w", id, err)
	}
	return out, nil
}

// AddDownPayment records a received amount. Settled or cancelled invoices
// accept no further payments.
func (s *Service) AddDownPayment(ctx context.Context, id int64, req DownPaymentRequest) (Invoice, error) {
	if err := pricing.ValidateText("description", req.Description); err != nil {
		return Invoice{}, err
	}
	if !req.Amount.IsPositive() {
		return Invoice{}, &pricing.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !req.Amount.Equal(pricing.Round(req.Amount)) {
		return Invoice{}, &pricing.ValidationError{Field: "amount", Reason: "must have at most two decimal places"}
	}
	received := req.ReceivedAt
	if received.IsZero() {
		received = s.clock.Now()
	}
	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if Machine.IsTerminal(inv.Status) {
			return &lifecycle.LockedError{Document: Machine.Name(), Status: string(inv.Status)}
		}
		dp := DownPayment{Description: strings.TrimSpace(req.Description), Amount: req.Amount, ReceivedAt: received}
		dpID, err := tx.InsertDownPayment(ctx, id, dp)
		if err != nil {
			return err
		}
		dp.ID = dpID
		version := inv.Version
		inv.UpdatedAt = s.clock.Now()
		if err := tx.Update(ctx, inv, version); err != nil {
			return err
		}
		inv.Version = version + 1
		inv.DownPayments = append(inv.DownPayments, dp)
		out = inv
		return nil
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: down payment on %d: %w", id, err)
	}
	return out, nil
}

// Summary computes the totals of a stored invoice including down payments.
func (s *Service) Summary(ctx context.Context, id int64) (pricing.Summary, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return pricing.Summary{}, err
	}
	return pricing.Summarize(inv.PricingLines(), inv.Discount, inv.PricingDownPayments())
}

// AvailableTransitions lists the edges whose guards currently hold.
func (s *Service) AvailableTransitions(ctx context.Context, id int64) ([]lifecycle.Option[Status], error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Machine.Available(inv, s.clock.Now()), nil
}

// Transition moves an invoice to status to under an optimistic version check.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (Invoice, error) {
	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		version := inv.Version
		now := s.clock.Now()
		if err := Machine.Transition(&inv, to, now); err != nil {
			return err
		}
		inv.UpdatedAt = now
		if err := tx.Update(ctx, inv, version); err != nil {
			return err
		}
		inv.Version = version + 1
		out = inv
		return nil
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: transition %d to %s: %w", id, to, err)
	}
	s.logger.Info("invoice transitioned", slog.Int64("id", id), slog.String("number", out.Number), slog.String("status", string(to)))
	return out, nil
}

// Delete removes a draft invoice.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanDelete(inv); err != nil {
			return err
		}
		return tx.Delete(ctx, id, inv.Version)
	})
	if err != nil {
		return fmt.Errorf("invoices: delete %d: %w", id, err)
	}
	return nil
}

// MarkOverdue moves sent invoices whose due date has passed to OVERDUE,
// scanning limit candidates at a time until none are left.
func (s *Service) MarkOverdue(ctx context.Context, limit int) (lifecycle.SweepResult, error) {
	today := shared.DateOnly(s.clock.Now())
	scan := func(ctx context.Context, afterID int64, limit int) ([]lifecycle.Candidate, error) {
		return s.repo.OverdueCandidates(ctx, today, afterID, limit)
	}
	res, err := lifecycle.SweepBatches(ctx, Machine.Name(), limit, s.logger, scan, func(ctx context.Context, id int64) error {
		_, err := s.Transition(ctx, id, StatusOverdue)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("invoices: scan overdue candidates: %w", err)
	}
	return res, nil
}
