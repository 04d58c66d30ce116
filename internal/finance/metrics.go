// Package finance implements the loan scenario math: amortized payments,
// affordability metrics, Monte Carlo payment distributions, sensitivity
// analysis and scenario generation. Every function is pure.
package finance

import "math"

// MonthsPerYear is the number of payment periods in a year.
const MonthsPerYear = 12

// LoanParams describes a purchase financed by a fixed-rate loan.
// AnnualRate is a percentage (8.5 means 8.5%).
type LoanParams struct {
	PurchasePrice   float64 `json:"purchase_price"`
	DownPayment     float64 `json:"down_payment"`
	AnnualRate      float64 `json:"annual_rate"`
	TermMonths      int     `json:"term_months"`
	MonthlyIncome   float64 `json:"monthly_income"`
	MonthlyExpenses float64 `json:"monthly_expenses"`
}

// Principal returns the financed amount.
func (p LoanParams) Principal() float64 {
	return p.PurchasePrice - p.DownPayment
}

// Metrics are the derived figures for a set of loan parameters.
type Metrics struct {
	Principal          float64 `json:"principal"`
	MonthlyPayment     float64 `json:"monthly_payment"`
	TotalPayment       float64 `json:"total_payment"`
	TotalInterest      float64 `json:"total_interest"`
	TotalCost          float64 `json:"total_cost"`
	DebtToIncome       float64 `json:"debt_to_income"`
	LoanToValue        float64 `json:"loan_to_value"`
	MonthlySavings     float64 `json:"monthly_savings"`
	AffordabilityScore float64 `json:"affordability_score"`
}

// MonthlyPayment returns the fixed annuity payment for principal repaid over
// termMonths at annualRate percent. Non-positive principal or term yields 0;
// a zero rate spreads the principal evenly.
func MonthlyPayment(principal, annualRate float64, termMonths int) float64 {
	if principal <= 0 || termMonths <= 0 {
		return 0
	}
	n := float64(termMonths)
	r := annualRate / 100 / MonthsPerYear
	if r <= 0 {
		return principal / n
	}
	growth := math.Pow(1+r, n)
	return principal * r * growth / (growth - 1)
}

// DebtToIncome returns payment as a percentage of income, 0 when income is not positive.
func DebtToIncome(payment, income float64) float64 {
	if income <= 0 {
		return 0
	}
	return payment / income * 100
}

// LoanToValue returns principal as a percentage of price, 0 when price is not positive.
func LoanToValue(principal, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return principal / price * 100
}

// AffordabilityScore is a 1..10 heuristic: 10 − DTI/5, plus 2 when the
// household still saves money each month and minus 2 when it does not.
func AffordabilityScore(dti, savings float64) float64 {
	score := 10 - dti/5
	if savings > 0 {
		score += 2
	} else {
		score -= 2
	}
	return clamp(score, 1, 10)
}

// TotalCost is every payment made plus the down payment.
func TotalCost(p LoanParams) float64 {
	payment := MonthlyPayment(p.Principal(), p.AnnualRate, p.TermMonths)
	return payment*float64(max(p.TermMonths, 0)) + p.DownPayment
}

// Calculate derives the full metric set for p.
func Calculate(p LoanParams) Metrics {
	principal := p.Principal()
	payment := MonthlyPayment(principal, p.AnnualRate, p.TermMonths)
	term := float64(max(p.TermMonths, 0))

	m := Metrics{
		Principal:      principal,
		MonthlyPayment: payment,
		TotalPayment:   payment * term,
		DebtToIncome:   DebtToIncome(payment, p.MonthlyIncome),
		LoanToValue:    LoanToValue(principal, p.PurchasePrice),
		MonthlySavings: p.MonthlyIncome - p.MonthlyExpenses - payment,
	}
	if payment > 0 {
		m.TotalInterest = m.TotalPayment - principal
	}
	m.TotalCost = m.TotalPayment + p.DownPayment
	m.AffordabilityScore = AffordabilityScore(m.DebtToIncome, m.MonthlySavings)
	return m
}

// MaxAffordablePrice returns the highest purchase price whose payment keeps
// the debt-to-income ratio at targetDTI percent, given a fixed down payment.
// The payment never exceeds what is left of income after expenses.
func MaxAffordablePrice(income, expenses, downPayment, annualRate float64, termMonths int, targetDTI float64) float64 {
	if income <= 0 || termMonths <= 0 || targetDTI <= 0 {
		return max(downPayment, 0)
	}
	payment := min(income*targetDTI/100, income-max(expenses, 0))
	if payment <= 0 {
		return max(downPayment, 0)
	}
	n := float64(termMonths)
	r := annualRate / 100 / MonthsPerYear
	var principal float64
	if r <= 0 {
		principal = payment * n
	} else {
		principal = payment * (1 - math.Pow(1+r, -n)) / r
	}
	return principal + max(downPayment, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
