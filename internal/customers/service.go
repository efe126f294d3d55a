package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// DefaultPaymentTermsDays applies when a customer has no explicit terms.
const DefaultPaymentTermsDays = 30

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, c Customer) (int64, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, error)
}

// NumberIssuer hands out customer numbers.
type NumberIssuer interface {
	Issue(ctx context.Context, kind numbering.Kind, store func(ctx context.Context, number string) error) (string, error)
}

// Lookup resolves a customer for the document services. Implementations never
// let callers mutate the customer.
type Lookup interface {
	Customer(ctx context.Context, id int64) (Projection, error)
}

// Service manages the customer master.
type Service struct {
	repo    RepositoryPort
	numbers NumberIssuer
	clock   shared.Clock
	logger  *slog.Logger
}

// NewService constructs the customer service.
func NewService(repo RepositoryPort, numbers NumberIssuer, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, numbers: numbers, clock: clock, logger: logger.With(slog.String("module", "customers"))}
}

// Create assigns the next K-number and stores the customer.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Customer, error) {
	if err := pricing.ValidateText("name", req.Name); err != nil {
		return Customer{}, err
	}
	now := s.clock.Now()
	terms := req.PaymentTermsDays
	if terms == 0 {
		terms = DefaultPaymentTermsDays
	}
	c := Customer{
		PublicID:         uuid.New(),
		Name:             strings.TrimSpace(req.Name),
		Email:            req.Email,
		Street:           req.Street,
		PostalCode:       req.PostalCode,
		City:             req.City,
		Country:          strings.ToUpper(req.Country),
		PaymentTermsDays: terms,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	number, err := s.numbers.Issue(ctx, numbering.KindCustomer, func(ctx context.Context, number string) error {
		c.Number = number
		id, err := s.repo.Insert(ctx, c)
		c.ID = id
		return err
	})
	if err != nil {
		return Customer{}, fmt.Errorf("customers: insert: %w", err)
	}
	s.logger.Info("customer created", slog.Int64("id", c.ID), slog.String("number", number))
	return c, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers ordered by number.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// Customer implements Lookup.
func (s *Service) Customer(ctx context.Context, id int64) (Projection, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Projection{}, fmt.Errorf("customers: lookup %d: %w", id, err)
	}
	return c.Project(), nil
}
