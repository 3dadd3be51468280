package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"outlay/internal/amqp"
	"outlay/internal/sheets"
	"outlay/internal/storage"
)

// MirrorWorker keeps the external sheet in step with the expense store. It
// consumes mirror messages published on every mutation and additionally sweeps
// the store for rows still marked pending, which covers messages lost while
// the worker was down.
type MirrorWorker struct {
	storage   *storage.Repository
	mirror    sheets.RowMirror
	client    *amqp.Client
	batchSize int
	interval  time.Duration
}

func NewMirrorWorker(storage *storage.Repository, mirror sheets.RowMirror, client *amqp.Client, batchSize int, interval time.Duration) *MirrorWorker {
	return &MirrorWorker{
		storage:   storage,
		mirror:    mirror,
		client:    client,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run consumes the mirror queue and runs the periodic pending sweep until the
// context is cancelled.
func (w *MirrorWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.client.ConsumeMirror(ctx, w.HandleMirrorMessage)
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// HandleMirrorMessage applies a single mirror message to the sheet.
func (w *MirrorWorker) HandleMirrorMessage(ctx context.Context, msg *amqp.MirrorMessage) error {
	slog.InfoContext(ctx, "Processing mirror message", "id", msg.ID, "action", msg.Action)

	switch msg.Action {
	case amqp.ActionDelete:
		if err := w.mirror.Remove(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove row %d: %w", msg.ID, err)
		}
		return nil
	case amqp.ActionUpsert:
		return w.mirrorExpense(ctx, msg.ID)
	default:
		return fmt.Errorf("unknown mirror action %q", msg.Action)
	}
}

// ProcessPending mirrors any expenses still marked pending. This is the backup
// path for lost messages.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.PendingMirrorExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending expenses: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(ids))

	for _, id := range ids {
		if err := w.mirrorExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror expense", "id", id, "error", err)
		}
	}
	return nil
}

// StartupCheck drains the pending backlog once at boot with a larger batch, so
// downtime is recovered before the periodic sweep takes over.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	ids, err := w.storage.PendingMirrorExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending expenses at startup: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No pending expenses found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending expenses on startup", "count", len(ids))

	mirrored := 0
	failed := 0
	for _, id := range ids {
		if err := w.mirrorExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror expense during startup", "id", id, "error", err)
			failed++
			continue
		}
		mirrored++
	}

	slog.InfoContext(ctx, "Startup mirror check completed",
		"total", len(ids),
		"mirrored", mirrored,
		"failed", failed)
	return nil
}

func (w *MirrorWorker) mirrorExpense(ctx context.Context, id int64) error {
	expense, err := w.storage.GetExpense(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted between publish and consume. The row deletion has its
			// own message, so there is nothing left to mirror.
			slog.WarnContext(ctx, "Expense vanished before mirroring", "id", id)
			return nil
		}
		return fmt.Errorf("get expense %d: %w", id, err)
	}

	if err := w.mirror.Upsert(ctx, expense); err != nil {
		if markErr := w.storage.MarkMirrorError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert row %d: %w", id, err)
	}

	if err := w.storage.MarkMirrored(ctx, id); err != nil {
		// The sheet write succeeded, only the bookkeeping failed. The sweep
		// will retry the upsert, which is idempotent.
		slog.ErrorContext(ctx, "Failed to mark as mirrored", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Mirrored expense",
		"id", id,
		"amount_cents", expense.Amount.Cents,
		"category", expense.Category)
	return nil
}
