package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"outlay/internal/auth"
	"outlay/internal/core"
	"outlay/internal/storage"
)

// expenseForm carries form values back to the template, so a failed submit
// re-renders with everything the user already typed.
type expenseForm struct {
	ID          int64
	Amount      string
	Date        string
	Category    string
	Description string
	Categories  []core.Category
	Error       string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}

	count, err := s.service.Count(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Count expenses error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	totalPages := (count + s.pageSize - 1) / s.pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	expenses, err := s.service.ListPage(r.Context(), id.UserID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pref, err := s.service.Preference(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Load preference error", "error", err, "user_id", id.UserID)
		pref = core.Preference{UserID: id.UserID, Currency: core.DefaultCurrency}
	}

	data := struct {
		Notice     string
		Currency   string
		Expenses   []core.Expense
		Page       int
		TotalPages int
		HasPrev    bool
		HasNext    bool
		PrevPage   int
		NextPage   int
	}{
		Notice:     popNotice(w, r),
		Currency:   pref.Currency,
		Expenses:   expenses,
		Page:       page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevPage:   page - 1,
		NextPage:   page + 1,
	}

	s.render(w, r, "index.html", data)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	switch r.Method {
	case http.MethodGet:
		form := expenseForm{
			Date:       core.Date{Time: time.Now()}.String(),
			Categories: s.categoryOptions(r),
		}
		s.render(w, r, "add_expense.html", form)
	case http.MethodPost:
		form, expense, ok := s.parseExpenseForm(w, r, id)
		if !ok {
			form.Categories = s.categoryOptions(r)
			s.render(w, r, "add_expense.html", form)
			return
		}
		if _, err := s.service.Create(r.Context(), expense); err != nil {
			slog.ErrorContext(r.Context(), "Create expense error", "error", err, "user_id", id.UserID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		setNotice(w, "Expense added")
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	expenseID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		expense, err := s.service.Get(r.Context(), expenseID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			slog.ErrorContext(r.Context(), "Get expense error", "error", err, "id", expenseID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		form := expenseForm{
			ID:          expense.ID,
			Amount:      expense.Amount.String(),
			Date:        expense.Date.String(),
			Category:    expense.Category,
			Description: expense.Description,
			Categories:  s.categoryOptions(r),
		}
		s.render(w, r, "edit_expense.html", form)
	case http.MethodPost:
		form, expense, ok := s.parseExpenseForm(w, r, id)
		form.ID = expenseID
		if !ok {
			form.Categories = s.categoryOptions(r)
			s.render(w, r, "edit_expense.html", form)
			return
		}
		expense.ID = expenseID
		if err := s.service.Update(r.Context(), expense); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			slog.ErrorContext(r.Context(), "Update expense error", "error", err, "id", expenseID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		setNotice(w, "Expense updated")
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	expenseID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.service.Delete(r.Context(), id.UserID, expenseID); err != nil {
		// Records owned by someone else look exactly like missing ones.
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Delete expense error", "error", err, "id", expenseID, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	setNotice(w, "Expense deleted")
	http.Redirect(w, r, "/", http.StatusFound)
}

// parseExpenseForm validates the submitted fields. On failure it returns the
// raw values plus a message for re-rendering, with ok set to false.
func (s *Server) parseExpenseForm(w http.ResponseWriter, r *http.Request, id auth.Identity) (expenseForm, core.Expense, bool) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		return expenseForm{Error: "Invalid request format"}, core.Expense{}, false
	}

	form := expenseForm{
		Amount:      sanitizeInput(r.Form.Get("amount")),
		Date:        sanitizeInput(r.Form.Get("date")),
		Category:    sanitizeInput(r.Form.Get("category")),
		Description: sanitizeInput(r.Form.Get("description")),
	}

	cents, err := core.ParseAmountToCents(form.Amount)
	if err != nil {
		form.Error = "Invalid amount"
		return form, core.Expense{}, false
	}

	date, err := core.ParseDate(form.Date)
	if err != nil {
		form.Error = "Invalid date, use YYYY-MM-DD"
		return form, core.Expense{}, false
	}

	expense := core.Expense{
		OwnerID:     id.UserID,
		Amount:      core.Money{Cents: cents},
		Date:        date,
		Category:    form.Category,
		Description: form.Description,
	}
	if err := expense.Validate(); err != nil {
		form.Error = err.Error()
		return form, core.Expense{}, false
	}
	return form, expense, true
}

func (s *Server) categoryOptions(r *http.Request) []core.Category {
	cats, err := s.service.Categories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", "error", err)
		return nil
	}
	return cats
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}
