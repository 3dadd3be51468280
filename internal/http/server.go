package http

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"sync"

	"outlay/internal/auth"
	"outlay/internal/services"
	appweb "outlay/web"
)

// Server serves the expense tracker UI and its JSON endpoints. All expense
// routes require a verified session; the owner identity resolved from it
// scopes every query.
type Server struct {
	http.Server
	templates   *template.Template
	service     *services.ExpenseService
	verifier    *auth.Verifier
	pageSize    int
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, service *services.ExpenseService, verifier *auth.Verifier, pageSize int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		service:     service,
		verifier:    verifier,
		pageSize:    pageSize,
		rateLimiter: newRateLimiter(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux.HandleFunc("/{$}", s.withSecurityHeaders(verifier.RequireUser(s.handleIndex)))
	mux.HandleFunc("/add-expense", s.withSecurityHeaders(verifier.RequireUser(s.handleAddExpense)))
	mux.HandleFunc("/edit-expense/{id}", s.withSecurityHeaders(verifier.RequireUser(s.handleEditExpense)))
	mux.HandleFunc("/expense-delete/{id}", s.withSecurityHeaders(verifier.RequireUser(s.handleDeleteExpense)))

	mux.HandleFunc("/search-expenses", s.withSecurityHeaders(verifier.OptionalUser(s.handleSearchExpenses)))
	mux.HandleFunc("/expense_category_summary", s.withSecurityHeaders(verifier.RequireUser(s.handleCategorySummary)))
	mux.HandleFunc("/stats", s.withSecurityHeaders(verifier.RequireUser(s.handleStats)))

	mux.HandleFunc("/export_CSV", s.withSecurityHeaders(verifier.RequireUser(s.handleExportCSV)))
	mux.HandleFunc("/export_excel", s.withSecurityHeaders(verifier.RequireUser(s.handleExportExcel)))
	mux.HandleFunc("/export-pdf", s.withSecurityHeaders(verifier.RequireUser(s.handleExportPDF)))

	mux.HandleFunc(auth.LoginPath, handleLogin)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleLogin is a placeholder: session issuance belongs to the surrounding
// platform, this route only gives redirected browsers somewhere to land.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("sign in through the account portal to continue"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// A cheap query proves the database file is open and migrated.
	if _, err := s.service.Categories(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
