package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"outlay/internal/core"
)

// WriteCSV streams the records as CSV: one header row, then one row per
// record in the order given. Field quoting is left to encoding/csv.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		row := []string{e.Amount.String(), e.Description, e.Category, e.Date.String()}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
