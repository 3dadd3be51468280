package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"outlay/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "outlay_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreate(t *testing.T, repo *Repository, e core.Expense) core.Expense {
	t.Helper()
	id, err := repo.CreateExpense(context.Background(), e)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	e.ID = id
	return e
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	in := core.Expense{
		OwnerID:     1,
		Amount:      core.Money{Cents: 10050},
		Date:        core.NewDate(2024, 1, 5),
		Category:    "Food",
		Description: "groceries",
	}
	created := mustCreate(t, repo, in)

	got, err := repo.GetExpense(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.Amount != in.Amount || got.Date.String() != "2024-01-05" ||
		got.Category != in.Category || got.Description != in.Description || got.OwnerID != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetExpenseNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetExpense(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOverwritesAllFields(t *testing.T) {
	repo := newTestRepo(t)
	e := mustCreate(t, repo, core.Expense{
		OwnerID: 1, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1),
		Category: "Food", Description: "old",
	})

	e.OwnerID = 2
	e.Amount = core.Money{Cents: 9999}
	e.Date = core.NewDate(2024, 3, 3)
	e.Category = "Travel"
	e.Description = "new"
	if err := repo.UpdateExpense(context.Background(), e); err != nil {
		t.Fatalf("update expense: %v", err)
	}

	got, err := repo.GetExpense(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.OwnerID != 2 || got.Amount.Cents != 9999 || got.Date.String() != "2024-03-03" ||
		got.Category != "Travel" || got.Description != "new" {
		t.Fatalf("update did not overwrite: %+v", got)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.UpdateExpense(context.Background(), core.Expense{
		ID: 42, OwnerID: 1, Amount: core.Money{Cents: 1},
		Date: core.NewDate(2024, 1, 1), Category: "c", Description: "d",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	repo := newTestRepo(t)
	e := mustCreate(t, repo, core.Expense{
		OwnerID: 1, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1),
		Category: "Food", Description: "mine",
	})

	// Another owner cannot delete the record.
	if err := repo.DeleteExpense(context.Background(), 2, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if _, err := repo.GetExpense(context.Background(), e.ID); err != nil {
		t.Fatalf("record should still exist: %v", err)
	}

	if err := repo.DeleteExpense(context.Background(), 1, e.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repo.GetExpense(context.Background(), e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
}

func TestListScopedToOwnerInStorageOrder(t *testing.T) {
	repo := newTestRepo(t)
	a := mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1), Category: "a", Description: "first"})
	mustCreate(t, repo, core.Expense{OwnerID: 2, Amount: core.Money{Cents: 2}, Date: core.NewDate(2024, 1, 2), Category: "b", Description: "other owner"})
	c := mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 3}, Date: core.NewDate(2024, 1, 3), Category: "c", Description: "second"})

	got, err := repo.ListExpenses(context.Background(), 1)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != c.ID {
		t.Fatalf("expected [%d %d], got %+v", a.ID, c.ID, got)
	}
}

func TestListExpensesPage(t *testing.T) {
	repo := newTestRepo(t)
	for i := 0; i < 7; i++ {
		mustCreate(t, repo, core.Expense{
			OwnerID: 1, Amount: core.Money{Cents: int64(i + 1)},
			Date: core.NewDate(2024, 1, i+1), Category: "c", Description: "row",
		})
	}

	page, err := repo.ListExpensesPage(context.Background(), 1, 5, 5)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows on second page, got %d", len(page))
	}

	n, err := repo.CountExpenses(context.Background(), 1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestSearchExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mine := []core.Expense{
		{OwnerID: 1, Amount: core.Money{Cents: 10050}, Date: core.NewDate(2024, 1, 5), Category: "Transport", Description: "Bus ticket"},
		{OwnerID: 1, Amount: core.Money{Cents: 2500}, Date: core.NewDate(2024, 2, 10), Category: "Food", Description: "Lunch"},
	}
	for _, e := range mine {
		mustCreate(t, repo, e)
	}
	// Matching record of a different owner must never come back.
	mustCreate(t, repo, core.Expense{OwnerID: 2, Amount: core.Money{Cents: 10050}, Date: core.NewDate(2024, 1, 5), Category: "Transport", Description: "Bus ticket"})

	cases := []struct {
		term  string
		count int
	}{
		{"100", 1},     // amount prefix
		{"100.5", 1},   // amount prefix, decimals
		{"2024-01", 1}, // date prefix
		{"2024", 2},    // date prefix, both
		{"ticket", 1},  // description substring, case-insensitive
		{"FOOD", 1},    // category substring, case-insensitive
		{"", 2},        // empty term matches all owner records
		{"nothing", 0},
		{"1%", 0},   // LIKE metacharacters match literally
		{"_024", 0}, // underscore is not a single-char wildcard
		{"%", 0},
		{`\`, 0}, // escape char itself is literal too
	}
	all, err := repo.ListExpenses(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	for _, tc := range cases {
		got, err := repo.SearchExpenses(ctx, 1, tc.term)
		if err != nil {
			t.Fatalf("search %q: %v", tc.term, err)
		}
		if len(got) != tc.count {
			t.Fatalf("search %q: expected %d results, got %d", tc.term, tc.count, len(got))
		}
		for _, e := range got {
			if e.OwnerID != 1 {
				t.Fatalf("search %q returned foreign record %+v", tc.term, e)
			}
		}
		// SQL matching must agree with the in-process predicate, record
		// by record, in both directions.
		matched := make(map[int64]bool, len(got))
		for _, e := range got {
			matched[e.ID] = true
			if !core.MatchesSearch(e, tc.term) {
				t.Fatalf("search %q returned non-matching record %+v", tc.term, e)
			}
		}
		for _, e := range all {
			if core.MatchesSearch(e, tc.term) && !matched[e.ID] {
				t.Fatalf("search %q missed matching record %+v", tc.term, e)
			}
		}
	}
}

func TestCategorySummaryWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 10000}, Date: core.NewDate(2024, 1, 5), Category: "Food", Description: "a"})
	mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 5000}, Date: core.NewDate(2024, 1, 10), Category: "Food", Description: "b"})
	mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 3000}, Date: core.NewDate(2023, 6, 1), Category: "Transport", Description: "c"})
	mustCreate(t, repo, core.Expense{OwnerID: 2, Amount: core.Money{Cents: 7000}, Date: core.NewDate(2024, 1, 5), Category: "Food", Description: "other owner"})

	today := core.NewDate(2024, 2, 1)
	got, err := repo.CategorySummary(ctx, 1, core.SummaryWindowStart(today), today)
	if err != nil {
		t.Fatalf("category summary: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Food" || got[0].Amount.Cents != 15000 {
		t.Fatalf("expected Food=15000, got %+v", got)
	}

	// The SQL aggregation must agree with the in-process one over the
	// same records and window.
	all, err := repo.ListExpenses(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := core.CategorySummary(all, core.SummaryWindowStart(today), today)
	if len(want) != len(got) {
		t.Fatalf("aggregations disagree: sql %+v, in-process %+v", got, want)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("aggregations disagree at %d: sql %+v, in-process %+v", i, got[i], want[i])
		}
	}
}

func TestCategorySummaryEmptyOwner(t *testing.T) {
	repo := newTestRepo(t)
	today := core.NewDate(2024, 2, 1)
	got, err := repo.CategorySummary(context.Background(), 9, core.SummaryWindowStart(today), today)
	if err != nil {
		t.Fatalf("category summary: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty summary, got %+v", got)
	}
}

func TestTotalAmount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	total, err := repo.TotalAmount(ctx, 1)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cents != 0 {
		t.Fatalf("expected zero total, got %d", total.Cents)
	}

	mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 1), Category: "a", Description: "x"})
	mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 250}, Date: core.NewDate(2024, 1, 2), Category: "b", Description: "y"})

	total, err = repo.TotalAmount(ctx, 1)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cents != 1250 {
		t.Fatalf("expected 1250, got %d", total.Cents)
	}
}

func TestGetOrCreatePreference(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.GetOrCreatePreference(ctx, 1)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if p.Currency != core.DefaultCurrency {
		t.Fatalf("expected default currency, got %s", p.Currency)
	}

	again, err := repo.GetOrCreatePreference(ctx, 1)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again != p {
		t.Fatalf("expected stable preference, got %+v vs %+v", again, p)
	}
}

func TestListCategoriesSeeded(t *testing.T) {
	repo := newTestRepo(t)
	cats, err := repo.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("expected seeded catalog")
	}
	for i := 1; i < len(cats); i++ {
		if cats[i].Name < cats[i-1].Name {
			t.Fatalf("catalog not sorted: %+v", cats)
		}
	}
}

func TestMirrorStatusLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e := mustCreate(t, repo, core.Expense{OwnerID: 1, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1), Category: "c", Description: "d"})

	ids, err := repo.PendingMirrorExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ids) != 1 || ids[0] != e.ID {
		t.Fatalf("expected pending [%d], got %v", e.ID, ids)
	}

	if err := repo.MarkMirrored(ctx, e.ID); err != nil {
		t.Fatalf("mark mirrored: %v", err)
	}
	ids, err = repo.PendingMirrorExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending after mark: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no pending rows, got %v", ids)
	}

	// An edit re-queues the row for mirroring.
	e.Description = "edited"
	if err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("update: %v", err)
	}
	ids, _ = repo.PendingMirrorExpenses(ctx, 10)
	if len(ids) != 1 {
		t.Fatalf("expected row re-queued after edit, got %v", ids)
	}
}
