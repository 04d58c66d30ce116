package finance

// Installment is one row of an amortization schedule.
type Installment struct {
	Period    int     `json:"period"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// YearSummary aggregates a year of installments.
type YearSummary struct {
	Year      int     `json:"year"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// Schedule returns the amortization schedule for a fixed-rate loan. The last
// installment absorbs rounding so the balance closes at exactly zero.
func Schedule(principal, annualRate float64, termMonths int) []Installment {
	payment := MonthlyPayment(principal, annualRate, termMonths)
	if payment == 0 {
		return []Installment{}
	}
	r := annualRate / 100 / MonthsPerYear
	if r < 0 {
		r = 0
	}

	rows := make([]Installment, 0, termMonths)
	balance := principal
	for period := 1; period <= termMonths; period++ {
		interest := balance * r
		toPrincipal := payment - interest
		pay := payment
		if period == termMonths {
			toPrincipal = balance
			pay = balance + interest
		}
		balance -= toPrincipal
		rows = append(rows, Installment{
			Period:    period,
			Payment:   pay,
			Principal: toPrincipal,
			Interest:  interest,
			Balance:   max(balance, 0),
		})
	}
	return rows
}

// Yearly folds a schedule into per-year totals.
func Yearly(rows []Installment) []YearSummary {
	out := []YearSummary{}
	for _, row := range rows {
		year := (row.Period-1)/MonthsPerYear + 1
		if len(out) == 0 || out[len(out)-1].Year != year {
			out = append(out, YearSummary{Year: year})
		}
		y := &out[len(out)-1]
		y.Payment += row.Payment
		y.Principal += row.Principal
		y.Interest += row.Interest
		y.Balance = row.Balance
	}
	return out
}
