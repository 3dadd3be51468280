package sheets

import (
	"context"

	"outlay/internal/core"
)

// RowMirror reconciles individual expense records with an external
// spreadsheet copy. Implementations are best-effort: the store remains
// the source of truth.
type RowMirror interface {
	// Upsert writes the record into the mirror, replacing any row that
	// already carries its id.
	Upsert(ctx context.Context, e core.Expense) error

	// Remove drops the row carrying the given expense id, if present.
	Remove(ctx context.Context, id int64) error
}
