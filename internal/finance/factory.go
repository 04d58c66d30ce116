package finance

import "math"

// ScenarioType tags a scenario variant of a plan.
type ScenarioType string

// Scenario types.
const (
	ScenarioBaseline    ScenarioType = "baseline"
	ScenarioOptimistic  ScenarioType = "optimistic"
	ScenarioPessimistic ScenarioType = "pessimistic"
	ScenarioAlternative ScenarioType = "alternative"
	ScenarioStressTest  ScenarioType = "stress_test"
)

// ScenarioTypes lists every scenario type in generation order.
var ScenarioTypes = []ScenarioType{
	ScenarioBaseline, ScenarioOptimistic, ScenarioPessimistic, ScenarioAlternative, ScenarioStressTest,
}

// Valid reports whether t is a known scenario type.
func (t ScenarioType) Valid() bool {
	for _, s := range ScenarioTypes {
		if s == t {
			return true
		}
	}
	return false
}

// RiskLevel classifies a scenario by its debt-to-income ratio.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// RiskFor maps a DTI percentage to a risk level.
func RiskFor(dti float64) RiskLevel {
	switch {
	case dti <= 30:
		return RiskLow
	case dti <= 45:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Adjustment describes how a scenario deviates from the plan it is built from.
type Adjustment struct {
	Type             ScenarioType
	Name             string
	RateDelta        float64 // percentage points
	IncomeFactor     float64
	ExpenseFactor    float64
	ExtraDownPayment float64 // share of purchase price
}

// DefaultAdjustments are the scenario variants generated for every plan.
var DefaultAdjustments = []Adjustment{
	{Type: ScenarioBaseline, Name: "Baseline", IncomeFactor: 1, ExpenseFactor: 1},
	{Type: ScenarioOptimistic, Name: "Optimistic", RateDelta: -1, IncomeFactor: 1.10, ExpenseFactor: 1},
	{Type: ScenarioPessimistic, Name: "Pessimistic", RateDelta: 2, IncomeFactor: 0.90, ExpenseFactor: 1.10},
	{Type: ScenarioAlternative, Name: "Larger down payment", IncomeFactor: 1, ExpenseFactor: 1, ExtraDownPayment: 0.10},
	{Type: ScenarioStressTest, Name: "Stress test", RateDelta: 4, IncomeFactor: 0.75, ExpenseFactor: 1.20},
}

// Scenario is a generated plan variant with its metrics.
type Scenario struct {
	Name      string       `json:"name"`
	Type      ScenarioType `json:"scenario_type"`
	RiskLevel RiskLevel    `json:"risk_level"`
	Params    LoanParams   `json:"params"`
	Metrics   Metrics      `json:"calculated_metrics"`
}

// Apply returns p adjusted by a.
func (a Adjustment) Apply(p LoanParams) LoanParams {
	out := p
	out.AnnualRate = math.Max(0, p.AnnualRate+a.RateDelta)
	out.MonthlyIncome = p.MonthlyIncome * a.IncomeFactor
	out.MonthlyExpenses = p.MonthlyExpenses * a.ExpenseFactor
	if a.ExtraDownPayment > 0 {
		out.DownPayment = math.Min(p.DownPayment+p.PurchasePrice*a.ExtraDownPayment, p.PurchasePrice)
	}
	return out
}

// NewScenario builds a scenario of the given type from already adjusted params.
func NewScenario(name string, t ScenarioType, p LoanParams) Scenario {
	m := Calculate(p)
	return Scenario{
		Name:      name,
		Type:      t,
		RiskLevel: RiskFor(m.DebtToIncome),
		Params:    p,
		Metrics:   m,
	}
}

// GenerateScenarios builds one scenario per default adjustment.
func GenerateScenarios(p LoanParams) []Scenario {
	out := make([]Scenario, 0, len(DefaultAdjustments))
	for _, a := range DefaultAdjustments {
		out = append(out, NewScenario(a.Name, a.Type, a.Apply(p)))
	}
	return out
}
