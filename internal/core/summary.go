package core

import "sort"

// CategoryAmount is an amount aggregated under one category label.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// CategorySummary aggregates expense amounts by category label over the
// inclusive [from, to] window. Categories with no record in the window
// are absent from the result. Entries come back sorted by name, which
// keeps report output deterministic.
func CategorySummary(expenses []Expense, from, to Date) []CategoryAmount {
	totals := make(map[string]int64)
	var order []string
	for _, e := range expenses {
		if e.Date.Before(from.Time) || e.Date.After(to.Time) {
			continue
		}
		if _, seen := totals[e.Category]; !seen {
			order = append(order, e.Category)
		}
		totals[e.Category] += e.Amount.Cents
	}

	sort.Strings(order)
	out := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: totals[name]}})
	}
	return out
}
