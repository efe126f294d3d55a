package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/customers"
	"github.com/odyssey-erp/backoffice/internal/invoices"
	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// DefaultValidityDays is used when a quote is created without a validity date.
const DefaultValidityDays = 30

// ErrAlreadyConverted is returned when an accepted quote already has an invoice.
var ErrAlreadyConverted = fmt.Errorf("%w: quote already converted to an invoice", shared.ErrTransitionNotAllowed)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, error)
	ExpiryCandidates(ctx context.Context, today time.Time, afterID int64, limit int) ([]lifecycle.Candidate, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Quote, error)
	Insert(ctx context.Context, q Quote) (int64, error)
	ReplaceLines(ctx context.Context, quoteID int64, lines []Line) error
	Update(ctx context.Context, q Quote, expectedVersion int64) error
	Delete(ctx context.Context, id, expectedVersion int64) error
}

// NumberIssuer hands out quote numbers.
type NumberIssuer interface {
	Issue(ctx context.Context, kind numbering.Kind, store func(ctx context.Context, number string) error) (string, error)
}

// InvoiceDrafter creates the draft invoice of an accepted quote.
type InvoiceDrafter interface {
	DraftFromQuote(ctx context.Context, draft invoices.QuoteDraft) (invoices.Invoice, error)
	Delete(ctx context.Context, id int64) error
}

// Options tunes Service.
type Options struct {
	Clock           shared.Clock
	Logger          *slog.Logger
	DefaultCurrency string
}

// Service orchestrates quote flows.
type Service struct {
	repo            RepositoryPort
	numbers         NumberIssuer
	customers       customers.Lookup
	invoices        InvoiceDrafter
	clock           shared.Clock
	logger          *slog.Logger
	defaultCurrency string
}

// NewService constructs the quote service. invoices may be nil, in which
// case ConvertToInvoice is unavailable.
func NewService(repo RepositoryPort, numbers NumberIssuer, lookup customers.Lookup, drafter InvoiceDrafter, opts Options) *Service {
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
		invoices:        drafter,
		clock:           opts.Clock,
		logger:          opts.Logger.With(slog.String("module", "quotes")),
		defaultCurrency: opts.DefaultCurrency,
	}
}

// Create validates the request, assigns the next quote number and stores the draft.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Quote, error) {
	if err := pricing.ValidateText("title", req.Title); err != nil {
		return Quote{}, err
	}
	currency, err := pricing.ResolveCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return Quote{}, err
	}
	if err := req.Discount.Validate(); err != nil {
		return Quote{}, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return Quote{}, err
	}
	now := s.clock.Now()
	issue := shared.DateOnly(now)
	if !req.IssueDate.IsZero() {
		issue = shared.DateOnly(req.IssueDate)
	}
	validUntil := issue.AddDate(0, 0, DefaultValidityDays)
	if !req.ValidUntil.IsZero() {
		validUntil = shared.DateOnly(req.ValidUntil)
	}
	if validUntil.Before(issue) {
		return Quote{}, fmt.Errorf("%w: valid_until must not precede issue_date", shared.ErrValidation)
	}
	if _, err := s.customers.Customer(ctx, req.CustomerID); err != nil {
		return Quote{}, fmt.Errorf("quotes: customer: %w", err)
	}
	q := Quote{
		CustomerID: req.CustomerID,
		Title:      strings.TrimSpace(req.Title),
		Currency:   currency,
		Status:     Machine.Initial(),
		IssueDate:  issue,
		ValidUntil: validUntil,
		Discount:   req.Discount.OrNone(),
		Notes:      req.Notes,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	number, err := s.numbers.Issue(ctx, numbering.KindQuote, func(ctx context.Context, number string) error {
		q.Number = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.Insert(ctx, q)
			if err != nil {
				return err
			}
			q.ID = id
			return tx.ReplaceLines(ctx, id, lines)
		})
	})
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: create: %w", err)
	}
	q.Lines = lines
	s.logger.Info("quote created", slog.Int64("id", q.ID), slog.String("number", number))
	return q, nil
}

// Get returns one quote with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Quote, error) {
	return s.repo.Get(ctx, id)
}

// List returns quotes matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// ReplaceLines swaps the line set and optionally the discount of a draft.
func (s *Service) ReplaceLines(ctx context.Context, id int64, req ReplaceLinesRequest) (Quote, error) {
	lines, err := parseLines(req.Lines)
	if err != nil {
		return Quote{}, err
	}
	if req.Discount != nil {
		if err := req.Discount.Validate(); err != nil {
			return Quote{}, err
		}
	}
	var out Quote
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanEdit(q); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		if req.Discount != nil {
			q.Discount = req.Discount.OrNone()
		}
		version := q.Version
		q.UpdatedAt = s.clock.Now()
		if err := tx.Update(ctx, q, version); err != nil {
			return err
		}
		q.Version = version + 1
		q.Lines = lines
		out = q
		return nil
	})
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: replace lines of %d: %w", id, err)
	}
	return out, nil
}

// Summary computes the totals of a stored quote.
func (s *Service) Summary(ctx context.Context, id int64) (pricing.Summary, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return pricing.Summary{}, err
	}
	return pricing.Summarize(q.PricingLines(), q.Discount, nil)
}

// AvailableTransitions lists the edges whose guards currently hold.
func (s *Service) AvailableTransitions(ctx context.Context, id int64) ([]lifecycle.Option[Status], error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Machine.Available(q, s.clock.Now()), nil
}

// Transition moves a quote to status to. The row is re-read inside the
// transaction and written back only if its version is unchanged.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		version := q.Version
		now := s.clock.Now()
		if err := Machine.Transition(&q, to, now); err != nil {
			return err
		}
		q.UpdatedAt = now
		if err := tx.Update(ctx, q, version); err != nil {
			return err
		}
		q.Version = version + 1
		out = q
		return nil
	})
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: transition %d to %s: %w", id, to, err)
	}
	s.logger.Info("quote transitioned", slog.Int64("id", id), slog.String("number", out.Number), slog.String("status", string(to)))
	return out, nil
}

// Delete removes a draft quote.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanDelete(q); err != nil {
			return err
		}
		return tx.Delete(ctx, id, q.Version)
	})
	if err != nil {
		return fmt.Errorf("quotes: delete %d: %w", id, err)
	}
	return nil
}

// ExpireElapsed moves sent quotes whose validity window has elapsed to
// EXPIRED, scanning limit candidates at a time until none are left. Each
// quote goes through Transition on its own.
func (s *Service) ExpireElapsed(ctx context.Context, limit int) (lifecycle.SweepResult, error) {
	today := shared.DateOnly(s.clock.Now())
	scan := func(ctx context.Context, afterID int64, limit int) ([]lifecycle.Candidate, error) {
		return s.repo.ExpiryCandidates(ctx, today, afterID, limit)
	}
	res, err := lifecycle.SweepBatches(ctx, Machine.Name(), limit, s.logger, scan, func(ctx context.Context, id int64) error {
		_, err := s.Transition(ctx, id, StatusExpired)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("quotes: scan expiry candidates: %w", err)
	}
	return res, nil
}

// ConvertToInvoice drafts an invoice from an accepted quote and links it.
func (s *Service) ConvertToInvoice(ctx context.Context, id int64) (invoices.Invoice, error) {
	if s.invoices == nil {
		return invoices.Invoice{}, errors.New("quotes: invoice conversion not configured")
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return invoices.Invoice{}, err
	}
	if q.Status != StatusAccepted {
		return invoices.Invoice{}, &lifecycle.TransitionError{
			Document:  Machine.Name(),
			From:      string(q.Status),
			To:        "INVOICED",
			Condition: "only accepted quotes can be invoiced",
		}
	}
	if q.InvoiceID != nil {
		return invoices.Invoice{}, ErrAlreadyConverted
	}
	draft := invoices.QuoteDraft{
		QuoteID:     q.ID,
		QuoteNumber: q.Number,
		CustomerID:  q.CustomerID,
		Title:       q.Title,
		Currency:    q.Currency,
		Discount:    q.Discount,
	}
	for _, l := range q.Lines {
		draft.Lines = append(draft.Lines, invoices.LineRequest{
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			TaxRate:         l.TaxRate,
			DiscountPercent: l.DiscountPercent,
		})
	}
	inv, err := s.invoices.DraftFromQuote(ctx, draft)
	if err != nil {
		return invoices.Invoice{}, fmt.Errorf("quotes: convert %s: %w", q.Number, err)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.InvoiceID != nil {
			return ErrAlreadyConverted
		}
		version := cur.Version
		cur.InvoiceID = &inv.ID
		cur.UpdatedAt = s.clock.Now()
		return tx.Update(ctx, cur, version)
	})
	if err != nil {
		if derr := s.invoices.Delete(ctx, inv.ID); derr != nil {
			s.logger.Error("discard unlinked invoice draft", slog.Int64("invoice_id", inv.ID), slog.Any("error", derr))
		}
		return invoices.Invoice{}, fmt.Errorf("quotes: link invoice to %s: %w", q.Number, err)
	}
	s.logger.Info("quote converted", slog.String("number", q.Number), slog.String("invoice", inv.Number))
	return inv, nil
}
