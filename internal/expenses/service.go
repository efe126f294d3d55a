package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Document, error)
	Insert(ctx context.Context, d Document) (int64, error)
	ReplaceLines(ctx context.Context, documentID int64, lines []Line) error
	Update(ctx context.Context, d Document, expectedVersion int64) error
	Delete(ctx context.Context, id, expectedVersion int64) error
}

// NumberIssuer hands out expense document numbers.
type NumberIssuer interface {
	Issue(ctx context.Context, kind numbering.Kind, store func(ctx context.Context, number string) error) (string, error)
}

// Options tunes Service.
type Options struct {
	Clock           shared.Clock
	Logger          *slog.Logger
	DefaultCurrency string
}

// Service orchestrates expense document flows.
type Service struct {
	repo            RepositoryPort
	numbers         NumberIssuer
	clock           shared.Clock
	logger          *slog.Logger
	defaultCurrency string
}

// NewService constructs the expense service.
func NewService(repo RepositoryPort, numbers NumberIssuer, opts Options) *Service {
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
		clock:           opts.Clock,
		logger:          opts.Logger.With(slog.String("module", "expenses")),
		defaultCurrency: opts.DefaultCurrency,
	}
}

// Create stores a draft expense document.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Document, error) {
	if err := pricing.ValidateText("title", req.Title); err != nil {
		return Document{}, err
	}
	currency, err := pricing.ResolveCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return Document{}, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return Document{}, err
	}
	now := s.clock.Now()
	d := Document{
		Title:        strings.TrimSpace(req.Title),
		SupplierName: strings.TrimSpace(req.SupplierName),
		Currency:     currency,
		Status:       Machine.Initial(),
		ReceiptDate:  dateOnly(req.ReceiptDate),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	number, err := s.numbers.Issue(ctx, numbering.KindExpense, func(ctx context.Context, number string) error {
		d.Number = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.Insert(ctx, d)
			if err != nil {
				return err
			}
			d.ID = id
			return tx.ReplaceLines(ctx, id, lines)
		})
	})
	if err != nil {
		return Document{}, fmt.Errorf("expenses: create: %w", err)
	}
	d.Lines = lines
	s.logger.Info("expense document created", slog.Int64("id", d.ID), slog.String("number", number))
	return d, nil
}

// Get returns one document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns documents matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// Update edits the header of a draft.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Document, error) {
	return s.editDraft(ctx, id, func(ctx context.Context, tx TxRepository, d *Document) error {
		if req.Title != nil {
			if err := pricing.ValidateText("title", *req.Title); err != nil {
				return err
			}
			d.Title = strings.TrimSpace(*req.Title)
		}
		if req.SupplierName != nil {
			d.SupplierName = strings.TrimSpace(*req.SupplierName)
		}
		if req.ReceiptDate != nil {
			d.ReceiptDate = dateOnly(req.ReceiptDate)
		}
		return nil
	})
}

// ReplaceLines swaps the line set of a draft.
func (s *Service) ReplaceLines(ctx context.Context, id int64, req ReplaceLinesRequest) (Document, error) {
	lines, err := parseLines(req.Lines)
	if err != nil {
		return Document{}, err
	}
	return s.editDraft(ctx, id, func(ctx context.Context, tx TxRepository, d *Document) error {
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		d.Lines = lines
		return nil
	})
}

func (s *Service) editDraft(ctx context.Context, id int64, edit func(context.Context, TxRepository, *Document) error) (Document, error) {
	var out Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanEdit(d); err != nil {
			return err
		}
		if err := edit(ctx, tx, &d); err != nil {
			return err
		}
		version := d.Version
		d.UpdatedAt = s.clock.Now()
		if err := tx.Update(ctx, d, version); err != nil {
			return err
		}
		d.Version = version + 1
		out = d
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("expenses: edit %d: %w", id, err)
	}
	return out, nil
}

// Summary computes the totals of a stored document. Expense documents carry
// no document-level discount.
func (s *Service) Summary(ctx context.Context, id int64) (pricing.Summary, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return pricing.Summary{}, err
	}
	return pricing.Summarize(d.PricingLines(), pricing.NoDiscount, nil)
}

// AvailableTransitions lists the edges whose guards currently hold.
func (s *Service) AvailableTransitions(ctx context.Context, id int64) ([]lifecycle.Option[Status], error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Machine.Available(d, s.clock.Now()), nil
}

// Transition moves a document to status to under an optimistic version check.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (Document, error) {
	var out Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		version := d.Version
		now := s.clock.Now()
		if err := Machine.Transition(&d, to, now); err != nil {
			return err
		}
		d.UpdatedAt = now
		if err := tx.Update(ctx, d, version); err != nil {
			return err
		}
		d.Version = version + 1
		out = d
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("expenses: transition %d to %s: %w", id, to, err)
	}
	s.logger.Info("expense document transitioned", slog.Int64("id", id), slog.String("number", out.Number), slog.String("status", string(to)))
	return out, nil
}

// Delete removes a draft document.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanDelete(d); err != nil {
			return err
		}
		return tx.Delete(ctx, id, d.Version)
	})
	if err != nil {
		return fmt.Errorf("expenses: delete %d: %w", id, err)
	}
	return nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := shared.DateOnly(*t)
	return &d
}
