package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// DefaultMaxAttempts bounds retries on allocation conflicts.
const DefaultMaxAttempts = 5

// Store allocates suffixes. Allocate must be atomic per scope: it returns
// max(last issued, floor) + 1 and records it, so that no two callers ever
// receive the same value.
type Store interface {
	Allocate(ctx context.Context, scope string, floor int64) (int64, error)
}

// ExistingNumbers lists numbers already present in a scope. It seeds the
// floor so the generator never issues a number below imported data.
type ExistingNumbers interface {
	NumbersInScope(ctx context.Context, scope string) ([]string, error)
}

// ExistingNumbersFunc adapts a function to ExistingNumbers.
type ExistingNumbersFunc func(ctx context.Context, scope string) ([]string, error)

// NumbersInScope implements ExistingNumbers.
func (f ExistingNumbersFunc) NumbersInScope(ctx context.Context, scope string) ([]string, error) {
	return f(ctx, scope)
}

// Option customises a Generator.
type Option func(*Generator)

// WithFormat overrides the format of kind.
func WithFormat(kind Kind, f Format) Option {
	return func(g *Generator) { g.formats[kind] = f }
}

// WithExisting registers the source of already issued numbers for kind.
func WithExisting(kind Kind, src ExistingNumbers) Option {
	return func(g *Generator) { g.existing[kind] = src }
}

// WithMaxAttempts sets the conflict retry bound.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// Generator issues numbers per kind and scope.
type Generator struct {
	store       Store
	clock       shared.Clock
	formats     map[Kind]Format
	existing    map[Kind]ExistingNumbers
	maxAttempts int
	logger      *slog.Logger

	mu     sync.Mutex
	floors map[string]int64
}

// NewGenerator constructs a Generator backed by store.
func NewGenerator(store Store, clock shared.Clock, opts ...Option) *Generator {
	if clock == nil {
		clock = shared.SystemClock
	}
	g := &Generator{
		store:       store,
		clock:       clock,
		formats:     make(map[Kind]Format, len(DefaultFormats)),
		existing:    make(map[Kind]ExistingNumbers),
		maxAttempts: DefaultMaxAttempts,
		floors:      make(map[string]int64),
	}
	for k, f := range DefaultFormats {
		g.formats[k] = f
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With(slog.String("module", "numbering"))
	return g
}

// Format returns the configured format of kind.
func (g *Generator) Format(kind Kind) (Format, bool) {
	f, ok := g.formats[kind]
	return f, ok
}

// Next issues the next number for kind in the scope of the current time.
func (g *Generator) Next(ctx context.Context, kind Kind) (string, error) {
	f, ok := g.formats[kind]
	if !ok {
		return "", fmt.Errorf("numbering: unknown kind %q: %w", kind, shared.ErrValidation)
	}
	return g.NextIn(ctx, kind, f.Scope(g.clock.Now()))
}

// NextIn issues the next number for kind in an explicit scope.
func (g *Generator) NextIn(ctx context.Context, kind Kind, scope string) (string, error) {
	f, ok := g.formats[kind]
	if !ok {
		return "", fmt.Errorf("numbering: unknown kind %q: %w", kind, shared.ErrValidation)
	}
	floor, err := g.floor(ctx, kind, f, scope)
	if err != nil {
		return "", err
	}
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		n, err := g.store.Allocate(ctx, scope, floor)
		if errors.Is(err, ErrConflict) {
			g.logger.Warn("allocation conflict, retrying",
				slog.String("scope", scope),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("numbering: allocate %s: %w", scope, err)
		}
		return f.Render(scope, n)
	}
	return "", &ExhaustedError{Scope: scope, Attempts: g.maxAttempts, Reason: "allocation kept conflicting"}
}

// Issue allocates a number for kind and hands it to store, usually the insert
// of the numbered row. When store reports ErrNumberTaken the cached floor of
// the scope is dropped, so the next allocation re-reads existing numbers, and
// a fresh number is tried. Other store errors are returned unchanged.
func (g *Generator) Issue(ctx context.Context, kind Kind, store func(ctx context.Context, number string) error) (string, error) {
	f, ok := g.formats[kind]
	if !ok {
		return "", fmt.Errorf("numbering: unknown kind %q: %w", kind, shared.ErrValidation)
	}
	scope := f.Scope(g.clock.Now())
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		number, err := g.NextIn(ctx, kind, scope)
		if err != nil {
			return "", err
		}
		err = store(ctx, number)
		if errors.Is(err, ErrNumberTaken) {
			g.forget(kind, scope)
			g.logger.Warn("number already taken, reallocating",
				slog.String("scope", scope),
				slog.String("number", number),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return "", err
		}
		return number, nil
	}
	return "", &ExhaustedError{Scope: scope, Attempts: g.maxAttempts, Reason: "issued numbers kept colliding with stored rows"}
}

func (g *Generator) forget(kind Kind, scope string) {
	g.mu.Lock()
	delete(g.floors, string(kind)+"|"+scope)
	g.mu.Unlock()
}

// floor returns the highest existing suffix in scope, looked up once per scope
// until a collision drops it.
func (g *Generator) floor(ctx context.Context, kind Kind, f Format, scope string) (int64, error) {
	src, ok := g.existing[kind]
	if !ok {
		return 0, nil
	}
	key := string(kind) + "|" + scope
	g.mu.Lock()
	cached, seen := g.floors[key]
	g.mu.Unlock()
	if seen {
		return cached, nil
	}
	numbers, err := src.NumbersInScope(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("numbering: existing numbers in %s: %w", scope, err)
	}
	highest := f.HighestSuffix(scope, numbers)
	g.mu.Lock()
	g.floors[key] = highest
	g.mu.Unlock()
	return highest, nil
}
