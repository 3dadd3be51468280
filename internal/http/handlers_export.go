package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"outlay/internal/auth"
	"outlay/internal/core"
	"outlay/internal/export"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	expenses, ok := s.exportRecords(w, r, id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, expenses); err != nil {
		slog.ErrorContext(r.Context(), "CSV export error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", attachment(export.Filename("csv", time.Now())))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	expenses, ok := s.exportRecords(w, r, id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteExcel(&buf, expenses); err != nil {
		slog.ErrorContext(r.Context(), "Excel export error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(export.Filename("xlsx", time.Now())))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	expenses, ok := s.exportRecords(w, r, id)
	if !ok {
		return
	}

	pref, err := s.service.Preference(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Load preference error", "error", err, "user_id", id.UserID)
		pref = core.Preference{UserID: id.UserID, Currency: core.DefaultCurrency}
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, expenses, pref.Currency); err != nil {
		slog.ErrorContext(r.Context(), "PDF export error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Inline so browsers preview it instead of forcing a download.
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", export.Filename("pdf", time.Now())))
	w.Header().Set("Content-Transfer-Encoding", "binary")
	_, _ = w.Write(buf.Bytes())
}

// exportRecords loads the full record set for the requesting owner. The
// export views always cover everything, never the current page.
func (s *Server) exportRecords(w http.ResponseWriter, r *http.Request, id auth.Identity) ([]core.Expense, bool) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	expenses, err := s.service.List(r.Context(), id.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses for export error", "error", err, "user_id", id.UserID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return expenses, true
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
