package budgetservice

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/models"
)

var errRangeOrder = errors.New("to must not be before from")

// Insight thresholds.
const (
	// SpikePct is the growth over the previous range that flags a category.
	SpikePct = 25.0
	// DominantSharePct is the share of total spending that flags a category.
	DominantSharePct = 40.0
	topCategories    = 3
)

// CategoryShare is one category's part of the spending in a range.
type CategoryShare struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
	Share    float64         `json:"share"`
}

// MonthTotal is the spending of one calendar month (YYYY-MM).
type MonthTotal struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// Analytics summarizes spending over an inclusive date range.
type Analytics struct {
	From          civil.Date      `json:"from"`
	To            civil.Date      `json:"to"`
	Total         decimal.Decimal `json:"total"`
	Count         int             `json:"count"`
	AverageDaily  decimal.Decimal `json:"average_daily"`
	ByCategory    []CategoryShare `json:"by_category"`
	Monthly       []MonthTotal    `json:"monthly"`
	TopCategories []string        `json:"top_categories"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	// ChangePct is nil when the previous range had no spending.
	ChangePct *float64 `json:"change_pct"`

	previousByCategory map[string]decimal.Decimal
}

func pct(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(2).InexactFloat64()
}

// Summarize builds analytics for [from, to] from the expenses in that range
// and in the equal-length range before it.
func Summarize(from, to civil.Date, current, previous []models.Expense) Analytics {
	a := Analytics{
		From:               from,
		To:                 to,
		Total:              decimal.Zero,
		ByCategory:         []CategoryShare{},
		Monthly:            []MonthTotal{},
		TopCategories:      []string{},
		PreviousTotal:      decimal.Zero,
		previousByCategory: map[string]decimal.Decimal{},
	}

	byCategory := map[string]*CategoryShare{}
	byMonth := map[string]decimal.Decimal{}
	for _, e := range current {
		a.Total = a.Total.Add(e.Amount)
		a.Count++
		c, ok := byCategory[e.Category]
		if !ok {
			c = &CategoryShare{Category: e.Category, Amount: decimal.Zero}
			byCategory[e.Category] = c
		}
		c.Amount = c.Amount.Add(e.Amount)
		c.Count++
		month := fmt.Sprintf("%04d-%02d", e.Date.Year, int(e.Date.Month))
		byMonth[month] = byMonth[month].Add(e.Amount)
	}

	for _, c := range byCategory {
		c.Share = pct(c.Amount, a.Total)
		a.ByCategory = append(a.ByCategory, *c)
	}
	slices.SortFunc(a.ByCategory, func(x, y CategoryShare) int {
		if c := y.Amount.Cmp(x.Amount); c != 0 {
			return c
		}
		return cmp.Compare(x.Category, y.Category)
	})
	for i := 0; i < len(a.ByCategory) && i < topCategories; i++ {
		a.TopCategories = append(a.TopCategories, a.ByCategory[i].Category)
	}

	for m, v := range byMonth {
		a.Monthly = append(a.Monthly, MonthTotal{Month: m, Amount: v})
	}
	slices.SortFunc(a.Monthly, func(x, y MonthTotal) int { return cmp.Compare(x.Month, y.Month) })

	a.AverageDaily = a.Total.Div(decimal.NewFromInt(int64(daysBetween(from, to)))).Round(2)

	for _, e := range previous {
		a.PreviousTotal = a.PreviousTotal.Add(e.Amount)
		a.previousByCategory[e.Category] = a.previousByCategory[e.Category].Add(e.Amount)
	}
	if a.PreviousTotal.IsPositive() {
		change := a.Total.Sub(a.PreviousTotal).Div(a.PreviousTotal).Mul(hundred).Round(2).InexactFloat64()
		a.ChangePct = &change
	}
	return a
}

// Analytics summarizes the owner's spending in [from, to]. Zero dates
// default to the 30 days ending today.
func (s *Service) Analytics(ctx context.Context, owner string, from, to civil.Date) (Analytics, error) {
	from, to, err := s.resolveRange(from, to)
	if err != nil {
		return Analytics{}, err
	}
	current, err := s.db.ExpensesInRange(ctx, owner, from, to)
	if err != nil {
		return Analytics{}, err
	}
	pFrom, pTo := previousRange(from, to)
	previous, err := s.db.ExpensesInRange(ctx, owner, pFrom, pTo)
	if err != nil {
		return Analytics{}, err
	}
	return Summarize(from, to, current, previous), nil
}

// Insight kinds.
const (
	InsightOverBudget = "over_budget"
	InsightSpike      = "spending_spike"
	InsightDominant   = "dominant_category"
	InsightTrend      = "spending_trend"
)

// Insight is a rule-based observation about spending.
type Insight struct {
	Kind     string  `json:"kind"`
	Severity string  `json:"severity"`
	Category string  `json:"category,omitempty"`
	BudgetID string  `json:"budget_id,omitempty"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
}

// Detect derives insights from analytics and the owner's current budgets.
func Detect(a Analytics, budgets []models.Budget) []Insight {
	out := []Insight{}

	for _, b := range budgets {
		if b.Status == models.BudgetExceeded {
			out = append(out, Insight{
				Kind: InsightOverBudget, Severity: "critical", BudgetID: b.ID, Value: b.Utilization,
				Message: fmt.Sprintf("Budget %q is at %.1f%% of its limit", b.Name, b.Utilization),
			})
		}
		for _, al := range b.Allocations {
			if al.Status == models.BudgetExceeded {
				out = append(out, Insight{
					Kind: InsightOverBudget, Severity: "warning", BudgetID: b.ID, Category: al.Category,
					Value:   al.Utilization,
					Message: fmt.Sprintf("%s is over its %s allocation in %q", al.Category, al.Amount.StringFixed(2), b.Name),
				})
			}
		}
	}

	for _, c := range a.ByCategory {
		prev := a.previousByCategory[c.Category]
		if prev.IsPositive() {
			growth := pct(c.Amount.Sub(prev), prev)
			if growth > SpikePct {
				out = append(out, Insight{
					Kind: InsightSpike, Severity: "warning", Category: c.Category, Value: growth,
					Message: fmt.Sprintf("%s spending rose %.1f%% over the previous period", c.Category, growth),
				})
			}
		}
		if c.Share > DominantSharePct && len(a.ByCategory) > 1 {
			out = append(out, Insight{
				Kind: InsightDominant, Severity: "info", Category: c.Category, Value: c.Share,
				Message: fmt.Sprintf("%s accounts for %.1f%% of spending", c.Category, c.Share),
			})
		}
	}

	if a.ChangePct != nil && *a.ChangePct > SpikePct {
		out = append(out, Insight{
			Kind: InsightTrend, Severity: "warning", Value: *a.ChangePct,
			Message: fmt.Sprintf("Total spending rose %.1f%% over the previous period", *a.ChangePct),
		})
	}
	return out
}

// Insights returns rule-based observations about the owner's spending in [from, to].
func (s *Service) Insights(ctx context.Context, owner string, from, to civil.Date) ([]Insight, error) {
	a, err := s.Analytics(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}
	budgets, err := s.ListBudgets(ctx, owner)
	if err != nil {
		return nil, err
	}
	return Detect(a, budgets), nil
}
