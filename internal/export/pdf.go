package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"outlay/internal/core"
)

// WritePDF renders the records as a PDF document: a title, the four
// export columns, one row per record, and a grand total line summing
// every amount (zero with no records).
func WritePDF(w io.Writer, expenses []core.Expense, currency string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Expenses", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Expenses", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	widths := []float64{30, 80, 40, 30}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, name := range columns {
		pdf.CellFormat(widths[i], 8, name, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	var total int64
	for _, e := range expenses {
		values := []string{e.Amount.String(), e.Description, e.Category, e.Date.String()}
		for i, v := range values {
			pdf.CellFormat(widths[i], 8, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		total += e.Amount.Cents
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	label := fmt.Sprintf("Total: %s %s", currency, core.Money{Cents: total}.String())
	pdf.CellFormat(0, 8, label, "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
