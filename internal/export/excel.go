package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"outlay/internal/core"
)

// SheetName is the single worksheet holding the exported rows.
const SheetName = "Expenses"

// WriteExcel renders the records into an xlsx workbook with one
// worksheet: a bold header row, then one row per record. Every cell is
// written as its textual form, not as typed numeric or date cells.
func WriteExcel(w io.Writer, expenses []core.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellStr(SheetName, cell, name); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header row: %w", err)
	}

	for i, e := range expenses {
		values := []string{e.Amount.String(), e.Description, e.Category, e.Date.String()}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
