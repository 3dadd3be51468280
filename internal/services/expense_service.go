package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"outlay/internal/amqp"
	"outlay/internal/core"
	"outlay/internal/storage"
)

// ExpenseService coordinates the expense store with the mirror queue. Writes
// go to SQLite first; the mirror publish is best effort and never fails the
// calling request, since the pending sweep picks up anything the queue missed.
type ExpenseService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
}

// NewExpenseService creates the service. A nil amqpClient disables mirror
// publishing entirely.
func NewExpenseService(storage *storage.Repository, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{storage: storage, amqpClient: amqpClient}
}

// Create stores a new expense and queues it for mirroring.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, id, amqp.ActionUpsert)
	return id, nil
}

// Update overwrites an existing expense and queues it for re-mirroring.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) error {
	if err := s.storage.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, e.ID, amqp.ActionUpsert)
	return nil
}

// Delete removes an expense owned by ownerID and queues the row removal.
func (s *ExpenseService) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.storage.DeleteExpense(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, id, amqp.ActionDelete)
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

func (s *ExpenseService) List(ctx context.Context, ownerID int64) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, ownerID)
}

func (s *ExpenseService) ListPage(ctx context.Context, ownerID int64, limit, offset int) ([]core.Expense, error) {
	return s.storage.ListExpensesPage(ctx, ownerID, limit, offset)
}

func (s *ExpenseService) Count(ctx context.Context, ownerID int64) (int, error) {
	return s.storage.CountExpenses(ctx, ownerID)
}

func (s *ExpenseService) Search(ctx context.Context, ownerID int64, term string) ([]core.Expense, error) {
	return s.storage.SearchExpenses(ctx, ownerID, term)
}

func (s *ExpenseService) CategorySummary(ctx context.Context, ownerID int64, from, to core.Date) ([]core.CategoryAmount, error) {
	return s.storage.CategorySummary(ctx, ownerID, from, to)
}

func (s *ExpenseService) Total(ctx context.Context, ownerID int64) (core.Money, error) {
	return s.storage.TotalAmount(ctx, ownerID)
}

func (s *ExpenseService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

func (s *ExpenseService) Preference(ctx context.Context, userID int64) (core.Preference, error) {
	return s.storage.GetOrCreatePreference(ctx, userID)
}

func (s *ExpenseService) publish(ctx context.Context, id int64, action string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishMirror(ctx, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mirror message",
			"id", id,
			"action", action,
			"error", err)
	}
}

// Close releases the store and the queue connection.
func (s *ExpenseService) Close() error {
	var errs []error
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp client: %w", err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
