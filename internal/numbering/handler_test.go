package numbering

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

func TestNumbersEndpoint(t *testing.T) {
	clock := shared.NewFixedClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	r := chi.NewRouter()
	NewHandler(nil, NewGenerator(NewMemoryStore(), clock)).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/numbers/quote", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"kind":"quote","number":"ANG-2026-00001"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/numbers/receipt", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
