package quotes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

func newTestRouter(t *testing.T) (http.Handler, fixture) {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	NewHandler(nil, f.svc).MountRoutes(r)
	return r, f
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"customer_id": 7,
	"title": "Website relaunch",
	"valid_until": "2026-03-10T00:00:00Z",
	"lines": [
		{"description": "Beratung", "quantity": "2", "unit_price": "100", "tax_rate": "19"},
		{"description": "Buch", "quantity": "1", "unit_price": "50", "tax_rate": "7"}
	]
}`

func TestHandlerLifecycle(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/quotes", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q Quote
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&q))
	base := fmt.Sprintf("/quotes/%d", q.ID)

	rec = do(t, h, http.MethodGet, base+"/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum struct {
		Gross string `json:"gross"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))
	require.Equal(t, "291.5", sum.Gross)

	rec = do(t, h, http.MethodPost, base+"/transitions", `{"to":"SENT"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/transitions", `{"to":"SENT"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, "transition-not-allowed", problem.Type)
	require.Contains(t, problem.Detail, "no transition from SENT to SENT")

	rec = do(t, h, http.MethodPut, base+"/lines", `{"lines":[{"description":"x","quantity":"1","unit_price":"1","tax_rate":"0"}]}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodDelete, base, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/transitions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ACCEPTED"`)
}

func TestHandlerErrors(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/quotes/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/quotes/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes", `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes", `{"customer_id":7,"title":"x","lines":[{"description":"a","quantity":"1","unit_price":"1","tax_rate":"120"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "lines[0].tax_rate")

	rec = do(t, h, http.MethodPost, "/quotes/1/transitions", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSecondConvertConflicts(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/quotes", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var q Quote
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&q))
	base := fmt.Sprintf("/quotes/%d", q.ID)

	for _, to := range []string{"SENT", "ACCEPTED"} {
		rec = do(t, h, http.MethodPost, base+"/transitions", `{"to":"`+to+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, base+"/convert", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/convert", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Contains(t, problem.Detail, "already converted")
}

func TestHandlerDeleteDraft(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/quotes", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var q Quote
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&q))

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/quotes/%d", q.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
