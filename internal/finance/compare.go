package finance

// Delta is a scenario's difference from the baseline.
type Delta struct {
	Name               string       `json:"name"`
	Type               ScenarioType `json:"scenario_type"`
	MonthlyPayment     float64      `json:"monthly_payment"`
	TotalCost          float64      `json:"total_cost"`
	DebtToIncome       float64      `json:"debt_to_income"`
	AffordabilityScore float64      `json:"affordability_score"`
}

// Comparison ranks a set of scenarios.
type Comparison struct {
	MostAffordable string  `json:"most_affordable"`
	LowestCost     string  `json:"lowest_cost"`
	Baseline       string  `json:"baseline,omitempty"`
	Deltas         []Delta `json:"deltas"`
}

// Compare picks the most affordable and cheapest scenarios and reports every
// scenario relative to the baseline (the first baseline-typed scenario, or
// the first scenario when none is tagged baseline).
func Compare(scenarios []Scenario) Comparison {
	c := Comparison{Deltas: []Delta{}}
	if len(scenarios) == 0 {
		return c
	}

	base := scenarios[0]
	for _, s := range scenarios {
		if s.Type == ScenarioBaseline {
			base = s
			break
		}
	}
	c.Baseline = base.Name

	best, cheapest := scenarios[0], scenarios[0]
	for _, s := range scenarios[1:] {
		if s.Metrics.AffordabilityScore > best.Metrics.AffordabilityScore {
			best = s
		}
		if s.Metrics.TotalCost < cheapest.Metrics.TotalCost {
			cheapest = s
		}
	}
	c.MostAffordable = best.Name
	c.LowestCost = cheapest.Name

	for _, s := range scenarios {
		c.Deltas = append(c.Deltas, Delta{
			Name:               s.Name,
			Type:               s.Type,
			MonthlyPayment:     s.Metrics.MonthlyPayment - base.Metrics.MonthlyPayment,
			TotalCost:          s.Metrics.TotalCost - base.Metrics.TotalCost,
			DebtToIncome:       s.Metrics.DebtToIncome - base.Metrics.DebtToIncome,
			AffordabilityScore: s.Metrics.AffordabilityScore - base.Metrics.AffordabilityScore,
		})
	}
	return c
}
