package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"outlay/internal/auth"
	"outlay/internal/core"
)

// searchRequest is the expected search body. Anything that fails to decode
// into this shape is treated as an empty search with no matches.
type searchRequest struct {
	SearchText string `json:"searchText"`
}

// expenseJSON is the wire shape of a single expense in search results.
type expenseJSON struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

func (s *Server) handleSearchExpenses(w http.ResponseWriter, r *http.Request, id auth.Identity, ok bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Anonymous callers and malformed bodies both get an empty result,
	// never an error page.
	if !ok {
		_, _ = w.Write([]byte("[]"))
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.WarnContext(r.Context(), "Unreadable search body", "error", err)
		_, _ = w.Write([]byte("[]"))
		return
	}

	expenses, err := s.service.Search(r.Context(), id.UserID, sanitizeInput(req.SearchText))
	if err != nil {
		slog.ErrorContext(r.Context(), "Search expenses error", "error", err, "user_id", id.UserID)
		_, _ = w.Write([]byte("[]"))
		return
	}

	results := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		results = append(results, expenseJSON{
			ID:          e.ID,
			Amount:      e.Amount.Float(),
			Date:        e.Date.String(),
			Category:    e.Category,
			Description: e.Description,
		})
	}
	if err := json.NewEncoder(w).Encode(results); err != nil {
		slog.ErrorContext(r.Context(), "Encode search results error", "error", err)
	}
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	today := core.Date{Time: time.Now()}
	from := core.SummaryWindowStart(today)

	rows, err := s.service.CategorySummary(r.Context(), id.UserID, from, today)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category summary error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	byCategory := make(map[string]float64, len(rows))
	for _, row := range rows {
		byCategory[row.Name] = row.Amount.Float()
	}

	payload := struct {
		ExpenseCategoryData map[string]float64 `json:"expense_category_data"`
	}{ExpenseCategoryData: byCategory}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "Encode summary error", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	total, err := s.service.Total(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Total amount error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	count, err := s.service.Count(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Count expenses error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pref, err := s.service.Preference(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Load preference error", "error", err, "user_id", id.UserID)
		pref = core.Preference{UserID: id.UserID, Currency: core.DefaultCurrency}
	}

	data := struct {
		Currency string
		Total    string
		Count    int
	}{
		Currency: pref.Currency,
		Total:    total.String(),
		Count:    count,
	}

	s.render(w, r, "stats.html", data)
}
