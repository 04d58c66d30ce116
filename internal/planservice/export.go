package planservice

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// utf8BOM prefixes every CSV export.
const utf8BOM = "\ufeff"

// ExportFile is a rendered plan export.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type exportDoc struct {
	Plan       *models.Plan       `json:"plan"`
	Metrics    finance.Metrics    `json:"metrics"`
	Scenarios  []models.Scenario  `json:"scenarios"`
	Comparison finance.Comparison `json:"comparison"`
	ExportedAt time.Time          `json:"exported_at"`
}

// Export renders a plan with its scenarios as JSON or CSV.
func (s *Service) Export(ctx context.Context, who subscription.Principal, planID, format string) (*ExportFile, error) {
	if err := who.Tier.Require(subscription.Export); err != nil {
		return nil, err
	}
	format = strings.ToLower(format)
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("unsupported export format %q: %w", format, apperr.ErrInvalidInput)
	}

	p, err := s.GetPlan(ctx, who.Owner, planID)
	if err != nil {
		return nil, err
	}
	scenarios, err := s.db.ListScenarios(ctx, store.ScenarioFilter{PlanID: p.ID})
	if err != nil {
		return nil, err
	}
	set := make([]finance.Scenario, len(scenarios))
	for i, sc := range scenarios {
		set[i] = sc.Scenario
	}
	doc := exportDoc{
		Plan:       p,
		Metrics:    finance.Calculate(p.LoanParams),
		Scenarios:  scenarios,
		Comparison: finance.Compare(set),
		ExportedAt: s.now().UTC(),
	}

	base := "plan-" + p.ID
	if format == FormatCSV {
		data, err := renderCSV(doc)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Name: base + ".csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ExportFile{Name: base + ".json", ContentType: "application/json", Data: data}, nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderCSV(doc exportDoc) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)

	p := doc.Plan
	m := doc.Metrics
	records := [][]string{
		{"Plan", p.Name},
		{"Type", string(p.PlanType)},
		{"Status", string(p.Status)},
		{"Purchase price", money(p.PurchasePrice)},
		{"Down payment", money(p.DownPayment)},
		{"Annual rate %", strconv.FormatFloat(p.AnnualRate, 'f', -1, 64)},
		{"Term months", strconv.Itoa(p.TermMonths)},
		{"Monthly income", money(p.MonthlyIncome)},
		{"Monthly expenses", money(p.MonthlyExpenses)},
		{"Monthly payment", money(m.MonthlyPayment)},
		{"Total interest", money(m.TotalInterest)},
		{"Total cost", money(m.TotalCost)},
		{"Debt to income %", money(m.DebtToIncome)},
		{"Loan to value %", money(m.LoanToValue)},
		{"Affordability score", money(m.AffordabilityScore)},
		{},
		{"Scenario", "Type", "Risk", "Annual rate %", "Monthly income", "Monthly payment", "Total cost",
			"Debt to income %", "Affordability score"},
	}
	for _, sc := range doc.Scenarios {
		records = append(records, []string{
			sc.Name,
			string(sc.Type),
			string(sc.RiskLevel),
			strconv.FormatFloat(sc.Params.AnnualRate, 'f', -1, 64),
			money(sc.Params.MonthlyIncome),
			money(sc.Metrics.MonthlyPayment),
			money(sc.Metrics.TotalCost),
			money(sc.Metrics.DebtToIncome),
			money(sc.Metrics.AffordabilityScore),
		})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
