package projects

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
	Get(ctx context.Context, id int64) (Project, error)
	List(ctx context.Context, filter ListFilter) ([]Project, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Project, error)
	Insert(ctx context.Context, p Project) (int64, error)
	Update(ctx context.Context, p Project, expectedVersion int64) error
	Delete(ctx context.Context, id, expectedVersion int64) error
}

// NumberIssuer hands out project numbers.
type NumberIssuer interface {
	Issue(ctx context.Context, kind numbering.Kind, store func(ctx context.Context, number string) error) (string, error)
}

// Options tunes Service.
type Options struct {
	Clock           shared.Clock
	Logger          *slog.Logger
	DefaultCurrency string
}

// Service orchestrates project flows.
type Service struct {
	repo            RepositoryPort
	numbers         NumberIssuer
	customers       customers.Lookup
	clock           shared.Clock
	logger          *slog.Logger
	defaultCurrency string
}

// NewService constructs the project service.
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
		logger:          opts.Logger.With(slog.String("module", "projects")),
		defaultCurrency: opts.DefaultCurrency,
	}
}

// Create stores a draft project. The customer may be assigned later.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Project, error) {
	if err := pricing.ValidateText("name", req.Name); err != nil {
		return Project{}, err
	}
	currency, err := pricing.ResolveCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return Project{}, err
	}
	p := Project{
		CustomerID:  req.CustomerID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Budget:      req.Budget,
		Currency:    currency,
		StartDate:   dateOnly(req.StartDate),
		EndDate:     dateOnly(req.EndDate),
	}
	if err := s.check(ctx, p); err != nil {
		return Project{}, err
	}
	now := s.clock.Now()
	p.Status = Machine.Initial()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	number, err := s.numbers.Issue(ctx, numbering.KindProject, func(ctx context.Context, number string) error {
		p.Number = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.Insert(ctx, p)
			p.ID = id
			return err
		})
	})
	if err != nil {
		return Project{}, fmt.Errorf("projects: create: %w", err)
	}
	s.logger.Info("project created", slog.Int64("id", p.ID), slog.String("number", number))
	return p, nil
}

// Get returns one project.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// List returns projects matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Project, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// Update edits a draft project.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Project, error) {
	var out Project
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanEdit(p); err != nil {
			return err
		}
		if req.CustomerID != nil {
			p.CustomerID = req.CustomerID
		}
		if req.Name != nil {
			if err := pricing.ValidateText("name", *req.Name); err != nil {
				return err
			}
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Budget != nil {
			p.Budget = *req.Budget
		}
		if req.StartDate != nil {
			p.StartDate = dateOnly(req.StartDate)
		}
		if req.EndDate != nil {
			p.EndDate = dateOnly(req.EndDate)
		}
		if err := s.check(ctx, p); err != nil {
			return err
		}
		version := p.Version
		p.UpdatedAt = s.clock.Now()
		if err := tx.Update(ctx, p, version); err != nil {
			return err
		}
		p.Version = version + 1
		out = p
		return nil
	})
	if err != nil {
		return Project{}, fmt.Errorf("projects: update %d: %w", id, err)
	}
	return out, nil
}

// AvailableTransitions lists the edges whose guards currently hold.
func (s *Service) AvailableTransitions(ctx context.Context, id int64) ([]lifecycle.Option[Status], error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Machine.Available(p, s.clock.Now()), nil
}

// Transition moves a project to status to under an optimistic version check.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (Project, error) {
	var out Project
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		version := p.Version
		now := s.clock.Now()
		if err := Machine.Transition(&p, to, now); err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := tx.Update(ctx, p, version); err != nil {
			return err
		}
		p.Version = version + 1
		out = p
		return nil
	})
	if err != nil {
		return Project{}, fmt.Errorf("projects: transition %d to %s: %w", id, to, err)
	}
	s.logger.Info("project transitioned", slog.Int64("id", id), slog.String("number", out.Number), slog.String("status", string(to)))
	return out, nil
}

// Delete removes a draft project.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := Machine.CanDelete(p); err != nil {
			return err
		}
		return tx.Delete(ctx, id, p.Version)
	})
	if err != nil {
		return fmt.Errorf("projects: delete %d: %w", id, err)
	}
	return nil
}

func (s *Service) check(ctx context.Context, p Project) error {
	if p.Budget.IsNegative() {
		return &pricing.ValidationError{Field: "budget", Reason: "must not be negative"}
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return &pricing.ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}
	if p.CustomerID != nil {
		if _, err := s.customers.Customer(ctx, *p.CustomerID); err != nil {
			return fmt.Errorf("projects: customer: %w", err)
		}
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
