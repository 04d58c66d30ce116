// Package budgetservice manages budgets and expenses and derives spending
// status, analytics and insights from them.
package budgetservice

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/notify"
	"github.com/starford/finplan/internal/store"
)

// AllocationInput reserves part of a budget for a category.
type AllocationInput struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// BudgetInput is the client-editable part of a budget.
type BudgetInput struct {
	Name           string            `json:"name"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Period         models.Period     `json:"period"`
	StartDate      civil.Date        `json:"start_date"`
	AlertThreshold float64           `json:"alert_threshold"`
	Allocations    []AllocationInput `json:"allocations"`
}

func (in BudgetInput) apply(b *models.Budget, today civil.Date) {
	b.Name = in.Name
	b.TotalAmount = in.TotalAmount
	b.Period = in.Period
	b.StartDate = in.StartDate
	b.AlertThreshold = in.AlertThreshold
	b.Allocations = make([]models.Allocation, len(in.Allocations))
	for i, a := range in.Allocations {
		b.Allocations[i] = models.Allocation{Category: a.Category, Amount: a.Amount}
	}
	b.ApplyDefaults(today)
}

// Config wires optional collaborators.
type Config struct {
	Notifier notify.Notifier
	Events   events.Publisher
	Logger   *slog.Logger
}

// Service coordinates budget and expense storage.
type Service struct {
	db       *store.DB
	notifier notify.Notifier
	pub      events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new budget service.
func NewService(db *store.DB, cfg Config) *Service {
	s := &Service{db: db, notifier: cfg.Notifier, pub: cfg.Events, logger: cfg.Logger, now: time.Now}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.pub == nil {
		s.pub = events.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

func (s *Service) publish(ctx context.Context, t events.Type, owner string, data any) {
	if err := s.pub.Publish(ctx, events.New(t, owner, data)); err != nil {
		s.logger.Warn("publish event failed", slog.String("type", string(t)), slog.String("error", err.Error()))
	}
}

// CreateBudget stores a new budget and computes its current status.
func (s *Service) CreateBudget(ctx context.Context, owner string, in BudgetInput) (*models.Budget, error) {
	now := s.now().UTC().Truncate(time.Second)
	b := &models.Budget{ID: uuid.NewString(), Owner: owner, CreatedAt: now, UpdatedAt: now}
	in.apply(b, s.today())
	if err := b.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if err := s.db.CreateBudget(ctx, b); err != nil {
		return nil, err
	}
	s.publish(ctx, events.BudgetCreated, owner, map[string]string{"id": b.ID})
	return s.recalculate(ctx, b)
}

func (s *Service) load(ctx context.Context, owner, id string) (*models.Budget, error) {
	b, err := s.db.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Owner != owner {
		return nil, apperr.ErrNotFound
	}
	return b, nil
}

func (s *Service) evaluate(ctx context.Context, b *models.Budget) error {
	from, to := Window(b.StartDate, b.Period, s.today())
	sums, err := s.db.SumByCategory(ctx, b.Owner, from, to)
	if err != nil {
		return err
	}
	Apply(b, from, to, sums)
	return nil
}

// GetBudget returns the owner's budget with its current spending figures.
func (s *Service) GetBudget(ctx context.Context, owner, id string) (*models.Budget, error) {
	b, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := s.evaluate(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBudgets returns all of the owner's budgets with current spending figures.
func (s *Service) ListBudgets(ctx context.Context, owner string) ([]models.Budget, error) {
	budgets, err := s.db.ListBudgets(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range budgets {
		if err := s.evaluate(ctx, &budgets[i]); err != nil {
			return nil, err
		}
	}
	return budgets, nil
}

// UpdateBudget replaces a budget definition and recomputes its status.
func (s *Service) UpdateBudget(ctx context.Context, owner, id string, in BudgetInput) (*models.Budget, error) {
	b, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	status := b.Status
	in.apply(b, s.today())
	b.Status = status
	if err := b.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	b.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.db.UpdateBudget(ctx, b); err != nil {
		return nil, err
	}
	s.publish(ctx, events.BudgetUpdated, owner, map[string]string{"id": b.ID})
	return s.recalculate(ctx, b)
}

// DeleteBudget removes the owner's budget.
func (s *Service) DeleteBudget(ctx context.Context, owner, id string) error {
	if _, err := s.load(ctx, owner, id); err != nil {
		return err
	}
	if err := s.db.DeleteBudget(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.BudgetDeleted, owner, map[string]string{"id": id})
	return nil
}

// Recalculate recomputes a budget, stores its status and sends an alert when
// the status escalated to warning or exceeded.
func (s *Service) Recalculate(ctx context.Context, owner, id string) (*models.Budget, error) {
	b, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.recalculate(ctx, b)
}

func (s *Service) recalculate(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	previous := b.Status
	if err := s.evaluate(ctx, b); err != nil {
		return nil, err
	}
	if b.Status == previous {
		return b, nil
	}
	if err := s.db.SetBudgetStatus(ctx, b.ID, b.Status); err != nil {
		return nil, err
	}
	if b.Status.Severity() > previous.Severity() {
		s.alert(ctx, b)
	}
	return b, nil
}

func (s *Service) alert(ctx context.Context, b *models.Budget) {
	s.logger.Info("budget alert",
		slog.String("budget_id", b.ID),
		slog.String("status", string(b.Status)),
		slog.Float64("utilization", b.Utilization))

	s.publish(ctx, events.BudgetAlert, b.Owner, map[string]any{
		"id":          b.ID,
		"name":        b.Name,
		"status":      b.Status,
		"utilization": b.Utilization,
	})
	err := s.notifier.BudgetAlert(ctx, notify.BudgetAlert{
		Owner:       b.Owner,
		BudgetID:    b.ID,
		BudgetName:  b.Name,
		Status:      string(b.Status),
		Amount:      b.TotalAmount,
		Spent:       b.Spent,
		Utilization: b.Utilization,
		Period:      string(b.Period),
	})
	if err != nil {
		s.logger.Warn("budget alert notification failed", slog.String("budget_id", b.ID), slog.String("error", err.Error()))
	}
}

// recalculateAll refreshes every budget of owner after its expenses changed.
func (s *Service) recalculateAll(ctx context.Context, owner string) {
	budgets, err := s.db.ListBudgets(ctx, owner)
	if err != nil {
		s.logger.Warn("budget recalculation failed", slog.String("owner", owner), slog.String("error", err.Error()))
		return
	}
	for i := range budgets {
		if _, err := s.recalculate(ctx, &budgets[i]); err != nil {
			s.logger.Warn("budget recalculation failed", slog.String("budget_id", budgets[i].ID), slog.String("error", err.Error()))
		}
	}
}
