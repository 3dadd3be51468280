// Package storage implements the expense record store on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"outlay/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record id does not exist or does not
// belong to the requesting owner.
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const expenseColumns = "id, owner_id, amount_cents, date, category, description"

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var e core.Expense
	var date string
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Amount.Cents, &date, &e.Category, &e.Description); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	e.Date = d
	return e, nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateExpense inserts a record and returns its id. The new row starts
// in mirror status "pending" so the sheet mirror worker picks it up.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (owner_id, amount_cents, date, category, description) VALUES (?, ?, ?, ?, ?)`,
		e.OwnerID, e.Amount.Cents, e.Date.String(), e.Category, e.Description)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"owner_id", e.OwnerID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return id, nil
}

// GetExpense fetches a record by primary key regardless of owner.
func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// UpdateExpense overwrites every mutable field of the record, including
// the owner, and resets the mirror status so the row is re-synced.
func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET owner_id = ?, amount_cents = ?, date = ?, category = ?, description = ?, mirror_status = 'pending' WHERE id = ?`,
		e.OwnerID, e.Amount.Cents, e.Date.String(), e.Category, e.Description, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpense removes a record, but only when it belongs to ownerID.
// A foreign or unknown id yields ErrNotFound.
func (r *Repository) DeleteExpense(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id, "owner_id", ownerID)
	return nil
}

// ListExpenses returns all of an owner's records in storage order.
func (r *Repository) ListExpenses(ctx context.Context, ownerID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collectExpenses(rows)
}

// ListExpensesPage returns one listing page in storage order.
func (r *Repository) ListExpensesPage(ctx context.Context, ownerID int64, limit, offset int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list expenses page: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) CountExpenses(ctx context.Context, ownerID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// SearchExpenses returns the owner's records matching any of the four
// search predicates: amount text prefix, date text prefix, description
// substring, category substring. The empty term matches everything.
func (r *Repository) SearchExpenses(ctx context.Context, ownerID int64, term string) ([]core.Expense, error) {
	// The prefix predicates compare literally, so LIKE metacharacters in
	// the term have to be escaped. The instr() predicates already are.
	prefix := escapeLike(term)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE owner_id = ?
		   AND (printf('%.2f', amount_cents / 100.0) LIKE ? || '%' ESCAPE '\'
		     OR date LIKE ? || '%' ESCAPE '\'
		     OR instr(lower(description), lower(?)) > 0
		     OR instr(lower(category), lower(?)) > 0)
		 ORDER BY id`,
		ownerID, prefix, prefix, term, term)
	if err != nil {
		return nil, fmt.Errorf("search expenses: %w", err)
	}
	return collectExpenses(rows)
}

// escapeLike neutralizes LIKE metacharacters so the term matches as a
// literal under ESCAPE '\'.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// CategorySummary sums amounts per category label for the owner's
// records dated within [from, to] inclusive. Categories come back
// sorted by name; labels with no record in the window are absent.
func (r *Repository) CategorySummary(ctx context.Context, ownerID int64, from, to core.Date) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM expenses
		 WHERE owner_id = ? AND date >= ? AND date <= ?
		 GROUP BY category ORDER BY category`,
		ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, err
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// TotalAmount sums every record of the owner; zero with no records.
func (r *Repository) TotalAmount(ctx context.Context, ownerID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE owner_id = ?`, ownerID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total amount: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// ListCategories returns the advisory category catalog.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetOrCreatePreference returns the user's preference row, creating it
// with the default currency on first access.
func (r *Repository) GetOrCreatePreference(ctx context.Context, userID int64) (core.Preference, error) {
	p := core.Preference{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT currency FROM user_preferences WHERE user_id = ?`, userID).Scan(&p.Currency)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Preference{}, fmt.Errorf("get preference: %w", err)
	}

	p.Currency = core.DefaultCurrency
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, currency) VALUES (?, ?)
		 ON CONFLICT(user_id) DO NOTHING`, userID, p.Currency); err != nil {
		return core.Preference{}, fmt.Errorf("create preference: %w", err)
	}

	slog.InfoContext(ctx, "Preference created", "user_id", userID, "currency", p.Currency)
	return p, nil
}

// PendingMirrorExpenses returns ids of rows awaiting the sheet mirror,
// oldest first.
func (r *Repository) PendingMirrorExpenses(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM expenses WHERE mirror_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending mirror expenses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) setMirrorStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET mirror_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set mirror status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMirrored flags a row as successfully mirrored to the sheet.
func (r *Repository) MarkMirrored(ctx context.Context, id int64) error {
	return r.setMirrorStatus(ctx, id, "mirrored")
}

// MarkMirrorError flags a row whose mirror attempt failed.
func (r *Repository) MarkMirrorError(ctx context.Context, id int64) error {
	return r.setMirrorStatus(ctx, id, "error")
}
