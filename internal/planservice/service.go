// Package planservice coordinates financial plans, their scenarios and the
// analyses run over them.
package planservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/cache"
	"github.com/starford/finplan/internal/checksum"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
)

// PlanInput is the client-editable part of a plan.
type PlanInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	PlanType    models.PlanType   `json:"plan_type"`
	Status      models.PlanStatus `json:"status"`
	Visibility  models.Visibility `json:"visibility"`
	finance.LoanParams
}

func (in PlanInput) apply(p *models.Plan) {
	p.Name = in.Name
	p.Description = in.Description
	p.PlanType = in.PlanType
	p.Status = in.Status
	p.Visibility = in.Visibility
	p.LoanParams = in.LoanParams
	p.ApplyDefaults()
}

// Config wires optional collaborators.
type Config struct {
	// Iterations is the default Monte Carlo iteration count.
	Iterations  int
	Simulations cache.Cache[finance.Simulation]
	Events      events.Publisher
	Logger      *slog.Logger
}

// Service coordinates plan storage and analysis.
type Service struct {
	db         *store.DB
	iterations int
	sims       cache.Cache[finance.Simulation]
	pub        events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new plan service.
func NewService(db *store.DB, cfg Config) *Service {
	s := &Service{
		db:         db,
		iterations: cfg.Iterations,
		sims:       cfg.Simulations,
		pub:        cfg.Events,
		logger:     cfg.Logger,
		now:        time.Now,
	}
	if s.iterations <= 0 {
		s.iterations = finance.DefaultIterations
	}
	if s.sims == nil {
		s.sims = cache.NewLRU[finance.Simulation](256, time.Hour)
	}
	if s.pub == nil {
		s.pub = events.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) publish(ctx context.Context, t events.Type, owner string, data any) {
	if err := s.pub.Publish(ctx, events.New(t, owner, data)); err != nil {
		s.logger.Warn("publish event failed", slog.String("type", string(t)), slog.String("error", err.Error()))
	}
}

func stamp(p *models.Plan) error {
	cs, err := checksum.JSON(p.Fingerprint())
	if err != nil {
		return err
	}
	p.Checksum = cs
	return nil
}

// CreatePlan stores a new plan for the principal, enforcing the tier's plan limit.
func (s *Service) CreatePlan(ctx context.Context, who subscription.Principal, in PlanInput) (*models.Plan, error) {
	if limit := who.Tier.PlanLimit(); limit > 0 {
		n, err := s.db.CountPlans(ctx, who.Owner)
		if err != nil {
			return nil, err
		}
		if n >= limit {
			return nil, fmt.Errorf("%s tier allows %d plans: %w", who.Tier, limit, apperr.ErrLimitReached)
		}
	}

	now := s.now().UTC().Truncate(time.Second)
	p := &models.Plan{ID: uuid.NewString(), Owner: who.Owner, CreatedAt: now, UpdatedAt: now}
	in.apply(p)
	if err := p.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if err := stamp(p); err != nil {
		return nil, err
	}
	if err := s.db.CreatePlan(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, events.PlanCreated, p.Owner, map[string]string{"id": p.ID})
	return p, nil
}

// GetPlan returns the owner's plan. Other owners' plans read as not found.
func (s *Service) GetPlan(ctx context.Context, owner, id string) (*models.Plan, error) {
	p, err := s.db.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Owner != owner {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// GetShared returns a public plan regardless of owner.
func (s *Service) GetShared(ctx context.Context, id string) (*models.Plan, error) {
	p, err := s.db.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Visibility != models.VisibilityPublic {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// UpdatePlan replaces the plan's editable fields. A non-empty ifMatch must
// equal the stored checksum or apperr.ErrConflict is returned.
func (s *Service) UpdatePlan(ctx context.Context, owner, id string, in PlanInput, ifMatch string) (*models.Plan, error) {
	p, err := s.GetPlan(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != p.Checksum {
		return nil, apperr.ErrConflict
	}

	in.apply(p)
	if err := p.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	p.UpdatedAt = s.now().UTC().Truncate(time.Second)
	previous := ifMatch
	if previous == "" {
		previous = p.Checksum
	}
	if err := stamp(p); err != nil {
		return nil, err
	}
	if err := s.db.UpdatePlan(ctx, p, previous); err != nil {
		return nil, err
	}
	s.publish(ctx, events.PlanUpdated, p.Owner, map[string]string{"id": p.ID})
	return p, nil
}

// DeletePlan removes the owner's plan and its scenarios.
func (s *Service) DeletePlan(ctx context.Context, owner, id string) error {
	if _, err := s.GetPlan(ctx, owner, id); err != nil {
		return err
	}
	if err := s.db.DeletePlan(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.PlanDeleted, owner, map[string]string{"id": id})
	return nil
}

// ListPlans returns one page of the owner's plans and the total count.
func (s *Service) ListPlans(ctx context.Context, owner string, f store.PlanFilter) ([]models.Plan, int, error) {
	f.Owner = owner
	return s.db.ListPlans(ctx, f)
}
