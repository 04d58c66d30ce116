package mcpserver

// Methodology documents the formulas behind every figure the tools return.
const Methodology = `# finplan Calculation Methodology

All rates are annual percentages (8.5 means 8.5%). Money is in the plan's currency.

## Monthly payment

Fixed-rate annuity over n = term_months periods with r = annual_rate / 100 / 12:

    payment = P * r * (1 + r)^n / ((1 + r)^n - 1)

where P = purchase_price - down_payment. A zero rate spreads P evenly over n months.

## Metrics

- **total_payment** = payment * n; **total_interest** = total_payment - P
- **total_cost** = total_payment + down_payment
- **debt_to_income** = payment / monthly_income * 100 (0 without income)
- **loan_to_value** = P / purchase_price * 100
- **monthly_savings** = monthly_income - monthly_expenses - payment
- **affordability_score** (1-10) = 10 - debt_to_income / 5, plus 2 when monthly
  savings are positive and minus 2 otherwise, clamped to [1, 10].

## Scenarios

| Type | Adjustment |
|------|------------|
| baseline | plan as entered |
| optimistic | rate -1pp (floor 0), income +10% |
| pessimistic | rate +2pp, income -10%, expenses +10% |
| alternative | down payment +10% of price (capped at price) |
| stress_test | rate +4pp, income -25%, expenses +20% |

Risk level from debt-to-income: <= 30 low, <= 45 medium, otherwise high.

## Monte Carlo

Each iteration scales the rate by (1 + 0.02 * N(0,1)) floored at 0, the price by
(1 + U(-8%, +8%)) and income by (1 + 0.05 * N(0,1)), then records the payment.
Results report mean, median, p5/p25/p75/p95, standard deviation, volatility
(stddev / mean), skewness, excess kurtosis, value at risk (p95), expected
shortfall (mean of samples >= p95), mean debt-to-income and the share of
iterations with debt-to-income <= 40%. Percentile q uses index floor(n * q)
clamped to n - 1. A run is fully determined by its seed; seed 0 derives one
from the inputs.

## Sensitivity

One input is perturbed at a time: rate +1pp, price +1%, down payment +1% of
price, term +12 months. impact = new total_cost - base total_cost and
impact_pct = |impact| / base * 100, bucketed High (>= 5), Medium (>= 1) or Low.

## Rate matching

A catalog offer qualifies when it has not expired, monthly_income >= min_income,
loan_to_value <= max_ltv and term_months <= max_term_months. Zero limits are
unrestricted. Matches are priced at rate_min and sorted by it.
`
