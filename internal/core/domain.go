package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCurrency is assigned to a preference record the first time a
	// user is seen.
	DefaultCurrency = "INR"

	// SummaryWindowDays is the trailing window used by the category
	// summary report, inclusive on both ends.
	SummaryWindowDays = 180
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single spending record owned by one user. Category is
	// free text: the Category catalog is advisory and not enforced here.
	Expense struct {
		ID          int64
		OwnerID     int64
		Amount      Money
		Date        Date
		Category    string
		Description string
	}

	// Category is a catalog entry offered to the add/edit forms. It does
	// not constrain Expense.Category.
	Category struct {
		ID   int64
		Name string
	}

	// Preference holds per-user settings, currently just the display
	// currency code.
	Preference struct {
		UserID   int64
		Currency string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, the form it is stored and
// searched in.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// SummaryWindowStart returns the first day of the trailing summary
// window anchored at today.
func SummaryWindowStart(today Date) Date {
	return today.AddDays(-SummaryWindowDays)
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
