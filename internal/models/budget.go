package models

import (
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Period is the recurrence of a budget.
type Period string

// Budget periods.
const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// BudgetStatus reports how much of a budget has been used.
type BudgetStatus string

// Budget statuses, ordered by severity.
const (
	BudgetOK       BudgetStatus = "ok"
	BudgetWarning  BudgetStatus = "warning"
	BudgetExceeded BudgetStatus = "exceeded"
)

// Severity orders statuses so escalations can be detected.
func (s BudgetStatus) Severity() int {
	switch s {
	case BudgetWarning:
		return 1
	case BudgetExceeded:
		return 2
	default:
		return 0
	}
}

// DefaultAlertThreshold is the utilization percentage that triggers a warning.
const DefaultAlertThreshold = 80.0

// Allocation is the share of a budget reserved for one expense category.
type Allocation struct {
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Utilization float64         `json:"utilization"`
	Status      BudgetStatus    `json:"status"`
}

// Budget caps spending for a recurring period.
type Budget struct {
	ID             string          `json:"id"`
	Owner          string          `json:"owner"`
	Name           string          `json:"name"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Period         Period          `json:"period"`
	StartDate      civil.Date      `json:"start_date"`
	AlertThreshold float64         `json:"alert_threshold"`
	Allocations    []Allocation    `json:"allocations"`

	// Derived by recalculation.
	PeriodStart civil.Date      `json:"period_start"`
	PeriodEnd   civil.Date      `json:"period_end"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Utilization float64         `json:"utilization"`
	Status      BudgetStatus    `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyDefaults fills unset fields.
func (b *Budget) ApplyDefaults(today civil.Date) {
	if b.Period == "" {
		b.Period = PeriodMonthly
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = DefaultAlertThreshold
	}
	if DateIsZero(b.StartDate) {
		b.StartDate = today
	}
	if b.Status == "" {
		b.Status = BudgetOK
	}
	for i := range b.Allocations {
		b.Allocations[i].Category = NormalizeCategory(b.Allocations[i].Category)
	}
}

// Validate checks the budget definition.
func (b *Budget) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&b.TotalAmount, validation.By(positiveAmount)),
		validation.Field(&b.Period, validation.Required, validation.In(PeriodWeekly, PeriodMonthly, PeriodYearly)),
		validation.Field(&b.StartDate, validation.By(validDate)),
		validation.Field(&b.AlertThreshold, validation.Min(0.0).Exclusive(), validation.Max(100.0)),
		validation.Field(&b.Allocations, validation.By(b.validAllocations)),
	)
}

func (b *Budget) validAllocations(_ any) error {
	seen := make(map[string]struct{}, len(b.Allocations))
	sum := decimal.Zero
	for _, a := range b.Allocations {
		if a.Category == "" {
			return errors.New("category is required")
		}
		if _, dup := seen[a.Category]; dup {
			return errors.New("duplicate category " + a.Category)
		}
		seen[a.Category] = struct{}{}
		if a.Amount.IsNegative() {
			return errors.New("amount must not be negative")
		}
		sum = sum.Add(a.Amount)
	}
	if sum.GreaterThan(b.TotalAmount) {
		return errors.New("allocations exceed the budget total")
	}
	return nil
}

func positiveAmount(v any) error {
	d, ok := v.(decimal.Decimal)
	if !ok || !d.IsPositive() {
		return errors.New("must be greater than 0")
	}
	return nil
}

func validDate(v any) error {
	d, ok := v.(civil.Date)
	if !ok || !d.IsValid() {
		return errors.New("must be a valid date")
	}
	return nil
}

// NormalizeCategory trims and lower-cases a category name.
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// DateIsZero reports whether d is the zero date.
func DateIsZero(d civil.Date) bool {
	return d == civil.Date{}
}
