package planservice

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"

	"github.com/starford/finplan/internal/checksum"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
)

// ScheduleResult is an amortization schedule with yearly totals.
type ScheduleResult struct {
	Principal    float64               `json:"principal"`
	Payment      float64               `json:"monthly_payment"`
	Installments []finance.Installment `json:"installments,omitempty"`
	Years        []finance.YearSummary `json:"years"`
}

// BuildSchedule computes the schedule for params. Monthly rows are omitted
// unless detailed is set.
func BuildSchedule(params finance.LoanParams, detailed bool) ScheduleResult {
	principal := max(params.Principal(), 0)
	rows := finance.Schedule(principal, params.AnnualRate, params.TermMonths)
	res := ScheduleResult{
		Principal: principal,
		Payment:   finance.MonthlyPayment(principal, params.AnnualRate, params.TermMonths),
		Years:     finance.Yearly(rows),
	}
	if detailed {
		res.Installments = rows
	}
	return res
}

// Schedule returns the amortization schedule for a plan.
func (s *Service) Schedule(ctx context.Context, owner, planID string, detailed bool) (ScheduleResult, error) {
	p, err := s.GetPlan(ctx, owner, planID)
	if err != nil {
		return ScheduleResult{}, err
	}
	return BuildSchedule(p.LoanParams, detailed), nil
}

// Simulate runs a Monte Carlo simulation for params. Zero iterations use the
// service default; a zero seed is derived from the inputs so repeated
// requests are reproducible and served from the cache.
func (s *Service) Simulate(ctx context.Context, params finance.LoanParams, opts finance.SimulationOptions) (finance.Simulation, error) {
	if opts.Iterations <= 0 {
		opts.Iterations = s.iterations
	}
	opts.Iterations = min(opts.Iterations, finance.MaxIterations)

	digest, err := checksum.JSON(params)
	if err != nil {
		return finance.Simulation{}, err
	}
	if opts.Seed == 0 {
		opts.Seed = checksum.Seed(digest)
	}
	key := fmt.Sprintf("%s:%d:%d", digest, opts.Iterations, opts.Seed)

	if sim, ok, err := s.sims.Get(ctx, key); err != nil {
		s.logger.Warn("simulation cache get failed", slog.String("error", err.Error()))
	} else if ok {
		return sim, nil
	}

	sim, err := finance.MonteCarlo(ctx, params, opts)
	if err != nil {
		return finance.Simulation{}, err
	}
	if err := s.sims.Set(ctx, key, sim); err != nil {
		s.logger.Warn("simulation cache set failed", slog.String("error", err.Error()))
	}
	return sim, nil
}

// MonteCarlo simulates a plan's payment distribution.
func (s *Service) MonteCarlo(ctx context.Context, who subscription.Principal, planID string, opts finance.SimulationOptions) (finance.Simulation, error) {
	if err := who.Tier.Require(subscription.MonteCarlo); err != nil {
		return finance.Simulation{}, err
	}
	p, err := s.GetPlan(ctx, who.Owner, planID)
	if err != nil {
		return finance.Simulation{}, err
	}
	return s.Simulate(ctx, p.LoanParams, opts)
}

// Sensitivity reports how a plan's total cost responds to each input.
func (s *Service) Sensitivity(ctx context.Context, who subscription.Principal, planID string) ([]finance.Factor, error) {
	if err := who.Tier.Require(subscription.Sensitivity); err != nil {
		return nil, err
	}
	p, err := s.GetPlan(ctx, who.Owner, planID)
	if err != nil {
		return nil, err
	}
	return finance.Sensitivity(p.LoanParams), nil
}

// RateMatch is a catalog offer a plan qualifies for, priced at its lowest rate.
type RateMatch struct {
	models.Rate
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalInterest  float64 `json:"total_interest"`
	UpfrontFee     float64 `json:"upfront_fee"`
}

var productFor = map[models.PlanType]models.ProductType{
	models.PlanHomePurchase: models.ProductMortgage,
	models.PlanCarPurchase:  models.ProductAuto,
	models.PlanRefinance:    models.ProductRefinance,
}

// Eligible reports whether a plan meets an offer's income, LTV and term limits.
// Zero limits are treated as unrestricted.
func Eligible(r models.Rate, params finance.LoanParams, today civil.Date) bool {
	if r.Expired(today) {
		return false
	}
	if r.MinIncome > 0 && params.MonthlyIncome < r.MinIncome {
		return false
	}
	if r.MaxLTV > 0 && finance.LoanToValue(params.Principal(), params.PurchasePrice) > r.MaxLTV {
		return false
	}
	if r.MaxTermMonths > 0 && params.TermMonths > r.MaxTermMonths {
		return false
	}
	return true
}

// MatchingRates returns the active offers a plan qualifies for, lowest rate first.
func (s *Service) MatchingRates(ctx context.Context, owner, planID string) ([]RateMatch, error) {
	p, err := s.GetPlan(ctx, owner, planID)
	if err != nil {
		return nil, err
	}
	today := civil.DateOf(s.now())
	rates, err := s.db.ListRates(ctx, store.RateFilter{ProductType: productFor[p.PlanType], ActiveOn: today})
	if err != nil {
		return nil, err
	}

	principal := max(p.Principal(), 0)
	out := []RateMatch{}
	for _, r := range rates {
		if !Eligible(r, p.LoanParams, today) {
			continue
		}
		payment := finance.MonthlyPayment(principal, r.RateMin, p.TermMonths)
		out = append(out, RateMatch{
			Rate:           r,
			MonthlyPayment: payment,
			TotalInterest:  payment*float64(p.TermMonths) - principal,
			UpfrontFee:     principal * r.ProcessingFee / 100,
		})
	}
	return out, nil
}
