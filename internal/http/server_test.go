package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"outlay/internal/auth"
	"outlay/internal/core"
	"outlay/internal/services"
	"outlay/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *auth.Verifier) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "outlay_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := services.NewExpenseService(repo, nil)
	t.Cleanup(func() { svc.Close() })

	verifier := auth.NewVerifier("test-secret")
	srv := NewServer(":0", svc, verifier, 5)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, verifier
}

func authedRequest(t *testing.T, verifier *auth.Verifier, method, target string, body string) *http.Request {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: verifier.Token(1)})
	return req
}

func postForm(t *testing.T, srv *Server, verifier *auth.Verifier, target string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := authedRequest(t, verifier, http.MethodPost, target, values.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func seedExpense(t *testing.T, srv *Server, ownerID int64, cents int64, date, category, description string) int64 {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	id, err := srv.service.Create(context.Background(), core.Expense{
		OwnerID:     ownerID,
		Amount:      core.Money{Cents: cents},
		Date:        d,
		Category:    category,
		Description: description,
	})
	if err != nil {
		t.Fatalf("seed expense: %v", err)
	}
	return id
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestIndexRedirectsAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != auth.LoginPath {
		t.Fatalf("expected redirect to %s, got %s", auth.LoginPath, loc)
	}
}

func TestIndexListsOwnExpensesOnly(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 10050, "2024-01-05", "Food", "groceries")
	seedExpense(t, srv, 2, 999999, "2024-01-06", "Travel", "flight to oslo")

	req := authedRequest(t, verifier, http.MethodGet, "/", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "groceries") {
		t.Fatalf("expected own expense in listing: %s", body)
	}
	if strings.Contains(body, "flight to oslo") {
		t.Fatal("foreign expense leaked into listing")
	}
	if !strings.Contains(body, "INR") {
		t.Fatal("expected default currency in listing")
	}
}

func TestIndexPagination(t *testing.T) {
	srv, verifier := newTestServer(t)
	for i := 0; i < 7; i++ {
		seedExpense(t, srv, 1, 100, "2024-01-05", "Food", "item")
	}

	req := authedRequest(t, verifier, http.MethodGet, "/?page=2", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "page 2 of 2") {
		t.Fatalf("expected page 2 of 2 marker: %s", rec.Body.String())
	}
}

func TestAddExpenseRoundTrip(t *testing.T) {
	srv, verifier := newTestServer(t)

	rec := postForm(t, srv, verifier, "/add-expense", url.Values{
		"amount":      {"42.50"},
		"date":        {"2024-03-10"},
		"category":    {"Transport"},
		"description": {"train ticket"},
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect after create, got %d: %s", rec.Code, rec.Body.String())
	}

	expenses, err := srv.service.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(expenses))
	}
	if expenses[0].Amount.Cents != 4250 || expenses[0].Description != "train ticket" {
		t.Fatalf("unexpected stored expense: %+v", expenses[0])
	}
}

func TestAddExpenseInvalidAmountPreservesForm(t *testing.T) {
	srv, verifier := newTestServer(t)

	rec := postForm(t, srv, verifier, "/add-expense", url.Values{
		"amount":      {"not-a-number"},
		"date":        {"2024-03-10"},
		"category":    {"Transport"},
		"description": {"train ticket"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected form re-render, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid amount") {
		t.Fatalf("expected validation message: %s", body)
	}
	if !strings.Contains(body, "train ticket") {
		t.Fatal("expected submitted values preserved in form")
	}

	count, err := srv.service.Count(context.Background(), 1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("invalid submit must not create a record")
	}
}

func TestEditExpenseOverwrites(t *testing.T) {
	srv, verifier := newTestServer(t)
	id := seedExpense(t, srv, 1, 500, "2024-01-01", "Food", "coffee")

	rec := postForm(t, srv, verifier, "/edit-expense/"+itoa(id), url.Values{
		"amount":      {"7.50"},
		"date":        {"2024-01-02"},
		"category":    {"Entertainment"},
		"description": {"cinema"},
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect after edit, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := srv.service.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 750 || got.Category != "Entertainment" || got.Description != "cinema" {
		t.Fatalf("edit not applied: %+v", got)
	}
}

func TestEditMissingExpense(t *testing.T) {
	srv, verifier := newTestServer(t)

	req := authedRequest(t, verifier, http.MethodGet, "/edit-expense/9999", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing expense, got %d", rec.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, verifier := newTestServer(t)
	id := seedExpense(t, srv, 1, 500, "2024-01-01", "Food", "coffee")

	req := authedRequest(t, verifier, http.MethodGet, "/expense-delete/"+itoa(id), "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect after delete, got %d", rec.Code)
	}
	if _, err := srv.service.Get(context.Background(), id); err == nil {
		t.Fatal("expected expense gone after delete")
	}
}

func TestDeleteForeignExpenseIs404(t *testing.T) {
	srv, verifier := newTestServer(t)
	id := seedExpense(t, srv, 2, 500, "2024-01-01", "Food", "coffee")

	req := authedRequest(t, verifier, http.MethodGet, "/expense-delete/"+itoa(id), "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign expense, got %d", rec.Code)
	}
	if _, err := srv.service.Get(context.Background(), id); err != nil {
		t.Fatal("foreign expense must survive the attempt")
	}
}

func TestSearchExpenses(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 10050, "2024-01-05", "Food", "groceries")
	seedExpense(t, srv, 1, 2500, "2024-02-01", "Transport", "bus ticket")
	seedExpense(t, srv, 2, 10050, "2024-01-05", "Food", "groceries")

	req := authedRequest(t, verifier, http.MethodPost, "/search-expenses", `{"searchText":"GROC"}`)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var results []expenseJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d: %v", len(results), results)
	}
	if results[0].Description != "groceries" || results[0].Amount != 100.50 {
		t.Fatalf("unexpected match: %+v", results[0])
	}
}

func TestSearchMalformedBodyIsEmptyArray(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 10050, "2024-01-05", "Food", "groceries")

	for _, body := range []string{"", "{not json", `"just a string"`} {
		req := authedRequest(t, verifier, http.MethodPost, "/search-expenses", body)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("body %q: expected 200, got %d", body, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Fatalf("body %q: expected empty array, got %s", body, rec.Body.String())
		}
	}
}

func TestSearchAnonymousIsEmptyArray(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/search-expenses", strings.NewReader(`{"searchText":"x"}`))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestCategorySummaryJSON(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 15000, core.Date{Time: time.Now()}.String(), "Food", "monthly groceries")

	req := authedRequest(t, verifier, http.MethodGet, "/expense_category_summary", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		ExpenseCategoryData map[string]float64 `json:"expense_category_data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if payload.ExpenseCategoryData["Food"] != 150.00 {
		t.Fatalf("unexpected summary: %v", payload.ExpenseCategoryData)
	}
}

func TestExportCSV(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 10050, "2024-01-05", "Food", "groceries")

	req := authedRequest(t, verifier, http.MethodGet, "/export_CSV", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="Expenses_`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "100.50,groceries,Food,2024-01-05") {
		t.Fatalf("expected row in csv: %s", rec.Body.String())
	}
}

func TestExportPDFInline(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 10050, "2024-01-05", "Food", "groceries")

	req := authedRequest(t, verifier, http.MethodGet, "/export-pdf", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline; filename=") {
		t.Fatalf("expected single inline disposition, got %q", cd)
	}
	if cte := rec.Header().Get("Content-Transfer-Encoding"); cte != "binary" {
		t.Fatalf("expected binary transfer encoding, got %q", cte)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("expected a PDF body")
	}
}

func TestExportExcel(t *testing.T) {
	srv, verifier := newTestServer(t)
	seedExpense(t, srv, 1, 10050, "2024-01-05", "Food", "groceries")

	req := authedRequest(t, verifier, http.MethodGet, "/export_excel", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", ct)
	}
	// xlsx files are zip archives.
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatal("expected a zip container body")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, verifier := newTestServer(t)

	req := authedRequest(t, verifier, http.MethodGet, "/", "")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing frame options header")
	}
}
