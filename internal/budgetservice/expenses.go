package budgetservice

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
)

// ExpenseInput is the client-editable part of an expense.
type ExpenseInput struct {
	Date        civil.Date      `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

func (in ExpenseInput) apply(e *models.Expense, today civil.Date) {
	e.Date = in.Date
	if models.DateIsZero(e.Date) {
		e.Date = today
	}
	e.Amount = in.Amount
	e.Category = models.NormalizeCategory(in.Category)
	e.Description = in.Description
}

// CreateExpense records an expense and refreshes the owner's budgets.
func (s *Service) CreateExpense(ctx context.Context, owner string, in ExpenseInput) (*models.Expense, error) {
	e := &models.Expense{ID: uuid.NewString(), Owner: owner, CreatedAt: s.now().UTC()}
	in.apply(e, s.today())
	if err := e.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if err := s.db.CreateExpense(ctx, e); err != nil {
		return nil, err
	}
	s.publish(ctx, events.ExpenseCreated, owner, map[string]string{"id": e.ID, "category": e.Category})
	s.recalculateAll(ctx, owner)
	return e, nil
}

// GetExpense returns the owner's expense.
func (s *Service) GetExpense(ctx context.Context, owner, id string) (*models.Expense, error) {
	e, err := s.db.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Owner != owner {
		return nil, apperr.ErrNotFound
	}
	return e, nil
}

// UpdateExpense replaces an expense and refreshes the owner's budgets.
func (s *Service) UpdateExpense(ctx context.Context, owner, id string, in ExpenseInput) (*models.Expense, error) {
	e, err := s.GetExpense(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	in.apply(e, s.today())
	if err := e.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if err := s.db.UpdateExpense(ctx, e); err != nil {
		return nil, err
	}
	s.publish(ctx, events.ExpenseUpdated, owner, map[string]string{"id": e.ID, "category": e.Category})
	s.recalculateAll(ctx, owner)
	return e, nil
}

// DeleteExpense removes an expense and refreshes the owner's budgets.
func (s *Service) DeleteExpense(ctx context.Context, owner, id string) error {
	if _, err := s.GetExpense(ctx, owner, id); err != nil {
		return err
	}
	if err := s.db.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.ExpenseDeleted, owner, map[string]string{"id": id})
	s.recalculateAll(ctx, owner)
	return nil
}

// ListExpenses returns one page of the owner's expenses, newest first.
func (s *Service) ListExpenses(ctx context.Context, owner string, f store.ExpenseFilter) ([]models.Expense, int, error) {
	f.Owner = owner
	f.Category = models.NormalizeCategory(f.Category)
	return s.db.ListExpenses(ctx, f)
}

func daysBetween(from, to civil.Date) int {
	return to.DaysSince(from) + 1
}

// previousRange returns the equal-length range ending the day before from.
func previousRange(from, to civil.Date) (civil.Date, civil.Date) {
	n := daysBetween(from, to)
	return from.AddDays(-n), from.AddDays(-1)
}

// resolveRange defaults an open range to the 30 days ending today.
func (s *Service) resolveRange(from, to civil.Date) (civil.Date, civil.Date, error) {
	if models.DateIsZero(to) {
		to = s.today()
	}
	if models.DateIsZero(from) {
		from = to.AddDays(-29)
	}
	if to.Before(from) {
		return from, to, apperr.Invalid(errRangeOrder)
	}
	return from, to, nil
}
