package planservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
)

// GenerateScenarios builds the standard scenario set for a plan, replacing
// any previously generated scenarios.
func (s *Service) GenerateScenarios(ctx context.Context, owner, planID string) ([]models.Scenario, error) {
	p, err := s.GetPlan(ctx, owner, planID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	generated := finance.GenerateScenarios(p.LoanParams)
	out := make([]models.Scenario, len(generated))
	for i, g := range generated {
		out[i] = models.Scenario{ID: uuid.NewString(), PlanID: p.ID, Scenario: g, CreatedAt: now}
	}
	if err := s.db.ReplaceScenarios(ctx, p.ID, out); err != nil {
		return nil, err
	}
	s.publish(ctx, events.ScenariosGenerated, owner, map[string]any{"plan_id": p.ID, "count": len(out)})
	return out, nil
}

// ListScenarios returns a plan's scenarios, optionally filtered by type and risk level.
func (s *Service) ListScenarios(ctx context.Context, owner, planID string, t finance.ScenarioType, risk finance.RiskLevel) ([]models.Scenario, error) {
	if t != "" && !t.Valid() {
		return nil, fmt.Errorf("unknown scenario type %q: %w", t, apperr.ErrInvalidInput)
	}
	if risk != "" && !risk.Valid() {
		return nil, fmt.Errorf("unknown risk level %q: %w", risk, apperr.ErrInvalidInput)
	}
	if _, err := s.GetPlan(ctx, owner, planID); err != nil {
		return nil, err
	}
	return s.db.ListScenarios(ctx, store.ScenarioFilter{PlanID: planID, Type: t, RiskLevel: risk})
}

// CompareScenarios ranks the plan's stored scenarios. Plans without stored
// scenarios are compared over a freshly generated, unsaved set.
func (s *Service) CompareScenarios(ctx context.Context, who subscription.Principal, planID string) (finance.Comparison, error) {
	if err := who.Tier.Require(subscription.ScenarioCompare); err != nil {
		return finance.Comparison{}, err
	}
	p, err := s.GetPlan(ctx, who.Owner, planID)
	if err != nil {
		return finance.Comparison{}, err
	}
	stored, err := s.db.ListScenarios(ctx, store.ScenarioFilter{PlanID: p.ID})
	if err != nil {
		return finance.Comparison{}, err
	}
	if len(stored) == 0 {
		return finance.Compare(finance.GenerateScenarios(p.LoanParams)), nil
	}
	set := make([]finance.Scenario, len(stored))
	for i, sc := range stored {
		set[i] = sc.Scenario
	}
	return finance.Compare(set), nil
}

// DeleteScenario removes one scenario from a plan the owner holds.
func (s *Service) DeleteScenario(ctx context.Context, owner, id string) error {
	sc, err := s.db.GetScenario(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.GetPlan(ctx, owner, sc.PlanID); err != nil {
		return err
	}
	if err := s.db.DeleteScenario(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.ScenarioDeleted, owner, map[string]string{"id": id, "plan_id": sc.PlanID})
	return nil
}
