package core

import "strings"

// MatchesSearch reports whether an expense satisfies the multi-field
// search contract: the amount's textual form starts with the term, the
// date's textual form starts with the term, or the description or
// category contains the term case-insensitively. An empty term matches
// every record.
func MatchesSearch(e Expense, term string) bool {
	if term == "" {
		return true
	}
	lower := strings.ToLower(term)
	if strings.HasPrefix(e.Amount.String(), term) {
		return true
	}
	if strings.HasPrefix(e.Date.String(), term) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Description), lower) {
		return true
	}
	return strings.Contains(strings.ToLower(e.Category), lower)
}
