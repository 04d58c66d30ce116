package finance

import "math"

// Sensitivity buckets.
const (
	SensitivityHigh   = "High"
	SensitivityMedium = "Medium"
	SensitivityLow    = "Low"
)

// Thresholds on |impact| as a percentage of base total cost.
const (
	highImpactPct   = 5.0
	mediumImpactPct = 1.0
)

// Factor is the effect of perturbing a single input.
type Factor struct {
	Name        string  `json:"name"`
	Change      string  `json:"change"`
	BaseCost    float64 `json:"base_cost"`
	NewCost     float64 `json:"new_cost"`
	Impact      float64 `json:"impact"`
	ImpactPct   float64 `json:"impact_pct"`
	Sensitivity string  `json:"sensitivity"`
}

// Sensitivity perturbs each input one at a time and reports how total cost moves.
func Sensitivity(p LoanParams) []Factor {
	base := TotalCost(p)

	rate := p
	rate.AnnualRate += 1

	property := p
	property.PurchasePrice *= 1.01

	down := p
	down.DownPayment = math.Min(p.DownPayment+p.PurchasePrice*0.01, p.PurchasePrice)

	term := p
	term.TermMonths += 12

	return []Factor{
		factor("interest_rate", "+1 percentage point", base, TotalCost(rate)),
		factor("property_value", "+1% of price", base, TotalCost(property)),
		factor("down_payment", "+1% of price", base, TotalCost(down)),
		factor("loan_term", "+12 months", base, TotalCost(term)),
	}
}

func factor(name, change string, base, cost float64) Factor {
	f := Factor{
		Name:     name,
		Change:   change,
		BaseCost: base,
		NewCost:  cost,
		Impact:   cost - base,
	}
	if base > 0 {
		f.ImpactPct = math.Abs(f.Impact) / base * 100
	}
	f.Sensitivity = bucket(f.ImpactPct)
	return f
}

func bucket(pct float64) string {
	switch {
	case pct >= highImpactPct:
		return SensitivityHigh
	case pct >= mediumImpactPct:
		return SensitivityMedium
	default:
		return SensitivityLow
	}
}
