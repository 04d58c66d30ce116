package budgetservice

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/models"
)

var hundred = decimal.NewFromInt(100)

// utilization returns spent as a percentage of amount, rounded to 2 places.
func utilization(spent, amount decimal.Decimal) float64 {
	if !amount.IsPositive() {
		return 0
	}
	return spent.Div(amount).Mul(hundred).Round(2).InexactFloat64()
}

// statusFor classifies usage: exceeded above the amount, warning at or
// above threshold percent.
func statusFor(spent, amount decimal.Decimal, threshold float64) models.BudgetStatus {
	switch {
	case spent.GreaterThan(amount):
		return models.BudgetExceeded
	case utilization(spent, amount) >= threshold:
		return models.BudgetWarning
	default:
		return models.BudgetOK
	}
}

// Apply fills b's derived fields from per-category spending in the window.
// With allocations only allocated categories count towards the total;
// without them every expense does.
func Apply(b *models.Budget, from, to civil.Date, byCategory map[string]decimal.Decimal) {
	b.PeriodStart, b.PeriodEnd = from, to

	spent := decimal.Zero
	if len(b.Allocations) == 0 {
		for _, v := range byCategory {
			spent = spent.Add(v)
		}
	}
	for i := range b.Allocations {
		a := &b.Allocations[i]
		a.Spent = byCategory[a.Category]
		a.Remaining = a.Amount.Sub(a.Spent)
		a.Utilization = utilization(a.Spent, a.Amount)
		a.Status = statusFor(a.Spent, a.Amount, b.AlertThreshold)
		spent = spent.Add(a.Spent)
	}

	b.Spent = spent
	b.Remaining = b.TotalAmount.Sub(spent)
	b.Utilization = utilization(spent, b.TotalAmount)
	b.Status = statusFor(spent, b.TotalAmount, b.AlertThreshold)
}
