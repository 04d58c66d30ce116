package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/finplan/internal/budgetservice"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/planservice"
	"github.com/starford/finplan/internal/subscription"
)

// PlanRequest is the request body for creating or replacing a plan.
type PlanRequest = planservice.PlanInput

// PlanListResponse wraps paginated plan listings.
type PlanListResponse struct {
	Plans []models.Plan `json:"plans" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

// ScenarioListResponse wraps a plan's scenarios.
type ScenarioListResponse struct {
	Scenarios []models.Scenario `json:"scenarios" validate:"required"`
}

// SimulationRequest tunes a Monte Carlo run. A zero seed is derived from the inputs.
type SimulationRequest struct {
	Iterations int    `json:"iterations" example:"10000"`
	Seed       uint64 `json:"seed" example:"42"`
}

// CalcSimulationRequest runs Monte Carlo over ad-hoc loan parameters.
type CalcSimulationRequest struct {
	finance.LoanParams
	SimulationRequest
}

// CalcScheduleRequest builds an amortization schedule for ad-hoc parameters.
type CalcScheduleRequest struct {
	finance.LoanParams
	Detailed bool `json:"detailed"`
}

// SensitivityResponse wraps sensitivity factors.
type SensitivityResponse struct {
	Factors []finance.Factor `json:"factors" validate:"required"`
}

// AffordabilityRequest asks for the highest price a budget can carry.
type AffordabilityRequest struct {
	MonthlyIncome   float64 `json:"monthly_income" example:"60000000"`
	MonthlyExpenses float64 `json:"monthly_expenses" example:"25000000"`
	DownPayment     float64 `json:"down_payment" example:"600000000"`
	AnnualRate      float64 `json:"annual_rate" example:"8.5"`
	TermMonths      int     `json:"term_months" example:"240"`
	// TargetDTI defaults to 30 percent.
	TargetDTI float64 `json:"target_dti" example:"30"`
}

// Validate checks the affordability inputs field by field.
func (r AffordabilityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MonthlyIncome, validation.Required, validation.Min(0.01)),
		validation.Field(&r.MonthlyExpenses, validation.Min(0.0)),
		validation.Field(&r.DownPayment, validation.Min(0.0)),
		validation.Field(&r.AnnualRate, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&r.TermMonths, validation.Required, validation.Min(1), validation.Max(models.MaxTermMonths)),
		validation.Field(&r.TargetDTI, validation.Min(0.0), validation.Max(100.0)),
	)
}

// AffordabilityResponse is the result of an affordability check.
type AffordabilityResponse struct {
	MaxPrice       float64 `json:"max_price"`
	MaxLoan        float64 `json:"max_loan"`
	MonthlyPayment float64 `json:"monthly_payment"`
	TargetDTI      float64 `json:"target_dti"`
}

// RateListResponse wraps rate listings.
type RateListResponse struct {
	Rates []models.Rate `json:"rates" validate:"required"`
}

// RateMatchResponse wraps the rates a plan qualifies for.
type RateMatchResponse struct {
	Rates []planservice.RateMatch `json:"rates" validate:"required"`
}

// BudgetRequest is the request body for creating or replacing a budget.
type BudgetRequest = budgetservice.BudgetInput

// BudgetListResponse wraps budget listings.
type BudgetListResponse struct {
	Budgets []models.Budget `json:"budgets" validate:"required"`
}

// ExpenseRequest is the request body for creating or replacing an expense.
type ExpenseRequest = budgetservice.ExpenseInput

// ExpenseListResponse wraps paginated expense listings.
type ExpenseListResponse struct {
	Expenses []models.Expense `json:"expenses" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// InsightListResponse wraps spending insights.
type InsightListResponse struct {
	Insights []budgetservice.Insight `json:"insights" validate:"required"`
}

// SubscriptionResponse describes the caller's tier.
type SubscriptionResponse struct {
	Owner     string                 `json:"owner" example:"local"`
	Tier      subscription.Tier      `json:"tier" example:"free"`
	Features  []subscription.Feature `json:"features"`
	PlanLimit int                    `json:"plan_limit" example:"3"`
}
