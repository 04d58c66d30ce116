package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/finplan/internal/finance"
)

// Theme colors.
var (
	ColorBorder  = lipgloss.Color("#282726")
	ColorTextDim = lipgloss.Color("#575653")
	ColorText    = lipgloss.Color("#FFFCF0")
	ColorAccent  = lipgloss.Color("#3AA99F")
	ColorGreen   = lipgloss.Color("#879A39")
	ColorOrange  = lipgloss.Color("#DA702C")
	ColorRed     = lipgloss.Color("#D14D41")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(ColorText)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorTextDim)
)

// Table is a bordered text table. The first column is left-aligned and the
// rest are right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(titleStyle.Render(title))
}

func rule(b *strings.Builder, widths []int, left, mid, right string) {
	b.WriteString(dimStyle.Render(left))
	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if i < len(widths)-1 {
			b.WriteString(dimStyle.Render(mid))
		}
	}
	b.WriteString(dimStyle.Render(right))
	b.WriteString("\n")
}

// RenderTable renders t with box-drawing borders.
func RenderTable(t Table) string {
	cols := len(t.Headers)
	if cols == 0 && len(t.Rows) > 0 {
		cols = len(t.Rows[0])
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < cols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}
	rule(&b, widths, "╭", "┬", "╮")

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(fmt.Sprintf(" %-*s ", widths[i], h)))
			b.WriteString(dimStyle.Render("│"))
		}
		b.WriteString("\n")
		rule(&b, widths, "├", "┼", "┤")
	}

	for _, row := range t.Rows {
		b.WriteString(dimStyle.Render("│"))
		for i := range cols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == 0 {
				b.WriteString(valueStyle.Render(" " + cell + pad + " "))
			} else {
				b.WriteString(valueStyle.Render(" " + pad + cell + " "))
			}
			b.WriteString(dimStyle.Render("│"))
		}
		b.WriteString("\n")
	}

	rule(&b, widths, "╰", "┴", "╯")
	return b.String()
}

// scoreColor picks green, orange or red for an affordability score.
func scoreColor(score float64) lipgloss.Color {
	switch {
	case score >= 7:
		return ColorGreen
	case score >= 4:
		return ColorOrange
	default:
		return ColorRed
	}
}

// RenderMetrics renders the payment and affordability figures for one loan.
func RenderMetrics(m finance.Metrics) string {
	score := lipgloss.NewStyle().Foreground(scoreColor(m.AffordabilityScore)).
		Render(fmt.Sprintf("%.1f / 10", m.AffordabilityScore))
	return RenderTable(Table{
		Title:   "Loan Metrics",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Principal", FormatMoney(m.Principal)},
			{"Monthly payment", FormatMoney(m.MonthlyPayment)},
			{"Total payment", FormatMoney(m.TotalPayment)},
			{"Total interest", FormatMoney(m.TotalInterest)},
			{"Total cost", FormatMoney(m.TotalCost)},
			{"Debt-to-income", FormatPercent(m.DebtToIncome)},
			{"Loan-to-value", FormatPercent(m.LoanToValue)},
			{"Monthly savings", FormatMoney(m.MonthlySavings)},
			{"Affordability", score},
		},
	})
}

// RenderSensitivity renders one row per perturbed input.
func RenderSensitivity(factors []finance.Factor) string {
	rows := make([][]string, 0, len(factors))
	for _, f := range factors {
		rows = append(rows, []string{
			f.Name, f.Change, FormatMoney(f.NewCost), FormatMoney(f.Impact),
			FormatSignedPercent(f.ImpactPct), f.Sensitivity,
		})
	}
	return RenderTable(Table{
		Title:   "Sensitivity",
		Headers: []string{"Factor", "Change", "New cost", "Impact", "Impact %", "Level"},
		Rows:    rows,
	})
}

// RenderSimulation renders the Monte Carlo payment distribution.
func RenderSimulation(s finance.Simulation) string {
	return RenderTable(Table{
		Title:   fmt.Sprintf("Monte Carlo (%s iterations, seed %d)", FormatNumber(int64(s.Iterations)), s.Seed),
		Headers: []string{"Statistic", "Monthly payment"},
		Rows: [][]string{
			{"Mean", FormatMoney(s.Mean)},
			{"Median", FormatMoney(s.Median)},
			{"P5", FormatMoney(s.Percentile5)},
			{"P25", FormatMoney(s.Percentile25)},
			{"P75", FormatMoney(s.Percentile75)},
			{"P95", FormatMoney(s.Percentile95)},
			{"Std dev", FormatMoney(s.StdDev)},
			{"Value at risk (95%)", FormatMoney(s.ValueAtRisk)},
			{"Expected shortfall", FormatMoney(s.ExpectedShortfall)},
			{"Mean DTI", FormatPercent(s.MeanDebtToIncome)},
			{"Affordable share", FormatPercent(s.AffordableShare)},
		},
	})
}
