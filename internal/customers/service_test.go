package customers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryCustomerRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Customer
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{rows: make(map[int64]Customer)}
}

func (m *memoryCustomerRepo) Insert(_ context.Context, c Customer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Number == c.Number {
			return 0, fmt.Errorf("%w: duplicate number", shared.ErrValidation)
		}
	}
	m.nextID++
	c.ID = m.nextID
	m.rows[c.ID] = c
	return c.ID, nil
}

func (m *memoryCustomerRepo) Get(_ context.Context, id int64) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (m *memoryCustomerRepo) List(_ context.Context, filter ListFilter) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Customer
	for _, c := range m.rows {
		if filter.Search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memoryCustomerRepo) NumbersInScope(_ context.Context, scope string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.rows {
		if strings.HasPrefix(c.Number, scope) {
			out = append(out, c.Number)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *memoryCustomerRepo) {
	t.Helper()
	repo := newMemoryCustomerRepo()
	clock := shared.NewFixedClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	gen := numbering.NewGenerator(numbering.NewMemoryStore(), clock, numbering.WithExisting(numbering.KindCustomer, repo))
	return NewService(repo, gen, clock, nil), repo
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateRequest{Name: "Muster AG", City: "Bern", PostalCode: "3000", Country: "ch"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateRequest{Name: "Beispiel GmbH", PaymentTermsDays: 10})
	require.NoError(t, err)

	require.Equal(t, "K00001", first.Number)
	require.Equal(t, "K00002", second.Number)
	require.NotEqual(t, uuid.Nil, first.PublicID)
	require.Equal(t, DefaultPaymentTermsDays, first.PaymentTermsDays)
	require.Equal(t, 10, second.PaymentTermsDays)
	require.Equal(t, "CH", first.Country)
}

func TestCreateContinuesAfterImportedNumbers(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := repo.Insert(context.Background(), Customer{Number: "K00099", Name: "Imported"})
	require.NoError(t, err)

	c, err := svc.Create(context.Background(), CreateRequest{Name: "Fresh"})
	require.NoError(t, err)
	require.Equal(t, "K00100", c.Number)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateRequest{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLookupProjection(t *testing.T) {
	svc, _ := newTestService(t)
	c, err := svc.Create(context.Background(), CreateRequest{Name: "Muster AG", Street: "Hauptstrasse 1", PostalCode: "3000", City: "Bern", Country: "CH"})
	require.NoError(t, err)

	p, err := svc.Customer(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, "Hauptstrasse 1, 3000 Bern, CH", p.Address)
	require.Equal(t, c.Number, p.Number)

	_, err = svc.Customer(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"name":"Muster AG","email":"info@muster.ch"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Customer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/customers/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"name":"x","email":"not-an-email"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/404", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
