package finance

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
)

// Simulation defaults and shock magnitudes.
const (
	DefaultIterations = 10000
	MaxIterations     = 100000

	RateVolatility     = 0.02
	PropertyVolatility = 0.08
	IncomeVolatility   = 0.05

	// AffordableDTI is the debt-to-income ceiling counted as affordable.
	AffordableDTI = 40.0
)

// SimulationOptions controls a Monte Carlo run.
type SimulationOptions struct {
	Iterations int    `json:"iterations"`
	Seed       uint64 `json:"seed"`
}

// Simulation summarizes the distribution of simulated monthly payments.
type Simulation struct {
	Iterations        int     `json:"iterations"`
	Seed              uint64  `json:"seed"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Percentile5       float64 `json:"percentile_5"`
	Percentile25      float64 `json:"percentile_25"`
	Percentile75      float64 `json:"percentile_75"`
	Percentile95      float64 `json:"percentile_95"`
	StdDev            float64 `json:"std_dev"`
	Volatility        float64 `json:"volatility"`
	Skewness          float64 `json:"skewness"`
	Kurtosis          float64 `json:"kurtosis"`
	ValueAtRisk       float64 `json:"value_at_risk"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
	MeanDebtToIncome  float64 `json:"mean_debt_to_income"`
	AffordableShare   float64 `json:"affordable_share"`
}

// MonteCarlo perturbs the interest rate (normal), property value (uniform)
// and income (normal) for each iteration and records the resulting monthly
// payment. The same seed and params always produce the same result.
func MonteCarlo(ctx context.Context, p LoanParams, opts SimulationOptions) (Simulation, error) {
	n := opts.Iterations
	if n <= 0 {
		n = DefaultIterations
	}
	n = min(n, MaxIterations)

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	payments := make([]float64, n)
	var dtiSum float64
	affordable := 0

	for i := range n {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Simulation{}, err
			}
		}
		rate := math.Max(0, p.AnnualRate*(1+RateVolatility*normal(rng)))
		price := p.PurchasePrice * (1 + PropertyVolatility*(2*rng.Float64()-1))
		income := p.MonthlyIncome * (1 + IncomeVolatility*normal(rng))

		payment := MonthlyPayment(math.Max(0, price-p.DownPayment), rate, p.TermMonths)
		payments[i] = payment

		dti := DebtToIncome(payment, income)
		dtiSum += dti
		if income > 0 && dti <= AffordableDTI {
			affordable++
		}
	}

	s := Summarize(payments)
	s.Seed = opts.Seed
	s.MeanDebtToIncome = dtiSum / float64(n)
	s.AffordableShare = float64(affordable) / float64(n) * 100
	return s, nil
}

// Summarize computes the distribution statistics of samples. The slice is
// sorted in place.
func Summarize(samples []float64) Simulation {
	n := len(samples)
	if n == 0 {
		return Simulation{}
	}
	slices.Sort(samples)

	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(n)

	var m2, m3, m4 float64
	for _, v := range samples {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2 /= float64(n)
	m3 /= float64(n)
	m4 /= float64(n)
	sd := math.Sqrt(m2)

	s := Simulation{
		Iterations:   n,
		Mean:         mean,
		Median:       samples[n/2],
		Percentile5:  Percentile(samples, 0.05),
		Percentile25: Percentile(samples, 0.25),
		Percentile75: Percentile(samples, 0.75),
		Percentile95: Percentile(samples, 0.95),
		StdDev:       sd,
	}
	if mean != 0 {
		s.Volatility = sd / mean * 100
	}
	if sd > 0 {
		s.Skewness = m3 / (sd * sd * sd)
		s.Kurtosis = m4/(m2*m2) - 3
	}

	s.ValueAtRisk = s.Percentile95
	tail := samples[percentileIndex(n, 0.95):]
	var tailSum float64
	for _, v := range tail {
		tailSum += v
	}
	s.ExpectedShortfall = tailSum / float64(len(tail))
	return s
}

// Percentile returns the q-quantile of sorted samples using floor(n·q).
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[percentileIndex(len(sorted), q)]
}

func percentileIndex(n int, q float64) int {
	idx := int(math.Floor(float64(n) * q))
	return max(0, min(idx, n-1))
}

// normal draws a standard normal variate with the Box-Muller transform.
func normal(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
