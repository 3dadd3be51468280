// Package export renders a user's full expense set into downloadable
// documents. Every formatter is stateless: callers fetch the records,
// the formatter writes the complete document, and exporting twice with
// no intervening mutation yields identical row content.
package export

import (
	"time"
)

// Column order shared by every export format.
var columns = []string{"Amount", "Description", "Category", "Date"}

// Filename builds the timestamped download name,
// e.g. "Expenses_2024-02-01_13-45-10.csv".
func Filename(ext string, now time.Time) string {
	return "Expenses_" + now.Format("2006-01-02_15-04-05") + "." + ext
}
