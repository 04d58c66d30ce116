package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/planservice"
	"github.com/starford/finplan/internal/subscription"
	"github.com/starford/finplan/internal/testutil"
)

const ratesYAML = `
rates:
  - id: alpha-fixed
    bank: Alpha
    product: Fixed 30
    product_type: mortgage
    rate_min: 5.1
    rate_max: 5.9
  - id: beta-auto
    bank: Beta
    product: Auto Flex
    product_type: auto
    rate_min: 7.5
    rate_max: 9
`

func testServer(t *testing.T, tier subscription.Tier) (*Server, *planservice.Service) {
	t.Helper()
	db := testutil.TestStore(t)
	testutil.TestCatalog(t, db, ratesYAML)
	plans := planservice.NewService(db, planservice.Config{Iterations: 200, Logger: testutil.Logger()})
	return New(plans, db, subscription.Principal{Owner: "local", Tier: tier}), plans
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"calculate_metrics":     srv.calculateMetrics,
		"run_monte_carlo":       srv.runMonteCarlo,
		"sensitivity_analysis":  srv.sensitivityAnalysis,
		"amortization_schedule": srv.amortizationSchedule,
		"list_plans":            srv.listPlans,
		"get_plan":              srv.getPlan,
		"generate_scenarios":    srv.generateScenarios,
		"compare_scenarios":     srv.compareScenarios,
		"list_rates":            srv.listRates,
		"get_methodology":       srv.getMethodology,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func loanArgs() map[string]any {
	return map[string]any{
		"purchase_price":   400000.0,
		"down_payment":     80000.0,
		"annual_rate":      6.0,
		"term_months":      360.0,
		"monthly_income":   9000.0,
		"monthly_expenses": 2500.0,
	}
}

func TestCalculateMetrics(t *testing.T) {
	srv, _ := testServer(t, subscription.Free)

	r := callTool(t, srv, "calculate_metrics", loanArgs())
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var m finance.Metrics
	if err := json.Unmarshal([]byte(resultText(r)), &m); err != nil {
		t.Fatal(err)
	}
	if m.Principal != 320000 || m.LoanToValue != 80 {
		t.Errorf("metrics = %+v", m)
	}

	args := loanArgs()
	delete(args, "term_months")
	if r := callTool(t, srv, "calculate_metrics", args); !r.IsError {
		t.Error("expected error without term_months")
	}
	args = loanArgs()
	args["down_payment"] = 500000.0
	if r := callTool(t, srv, "calculate_metrics", args); !r.IsError {
		t.Error("expected error for down payment above price")
	}
}

func TestGatedTools(t *testing.T) {
	free, _ := testServer(t, subscription.Free)
	for _, name := range []string{"run_monte_carlo", "sensitivity_analysis"} {
		if r := callTool(t, free, name, loanArgs()); !r.IsError {
			t.Errorf("%s allowed on free tier", name)
		}
	}

	premium, _ := testServer(t, subscription.Premium)
	args := loanArgs()
	args["iterations"] = 300.0
	args["seed"] = 11.0
	a := resultText(callTool(t, premium, "run_monte_carlo", args))
	b := resultText(callTool(t, premium, "run_monte_carlo", args))
	if a == "" || a != b {
		t.Errorf("monte carlo not reproducible")
	}
	var sim finance.Simulation
	if err := json.Unmarshal([]byte(a), &sim); err != nil {
		t.Fatal(err)
	}
	if sim.Iterations != 300 || sim.Seed != 11 || sim.Percentile5 > sim.Percentile95 {
		t.Errorf("simulation = %+v", sim)
	}

	r := callTool(t, premium, "sensitivity_analysis", loanArgs())
	var factors []finance.Factor
	if err := json.Unmarshal([]byte(resultText(r)), &factors); err != nil || len(factors) != 4 {
		t.Errorf("factors = %v, %v", factors, err)
	}
}

func TestAmortizationSchedule(t *testing.T) {
	srv, _ := testServer(t, subscription.Free)
	args := loanArgs()
	args["detailed"] = true
	var res planservice.ScheduleResult
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "amortization_schedule", args))), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Installments) != 360 || len(res.Years) != 30 {
		t.Errorf("rows=%d years=%d", len(res.Installments), len(res.Years))
	}
}

func TestPlanTools(t *testing.T) {
	srv, plans := testServer(t, subscription.Pro)

	if text := resultText(callTool(t, srv, "list_plans", map[string]any{})); text != "no plans found" {
		t.Errorf("empty list = %q", text)
	}

	p, err := plans.CreatePlan(context.Background(), srv.who, planservice.PlanInput{
		Name: "Flat",
		LoanParams: finance.LoanParams{
			PurchasePrice: 400000, DownPayment: 80000, AnnualRate: 6, TermMonths: 360,
			MonthlyIncome: 9000, MonthlyExpenses: 2500,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if text := resultText(callTool(t, srv, "list_plans", map[string]any{"status": "draft"})); !strings.Contains(text, p.ID) {
		t.Errorf("list = %q", text)
	}
	if text := resultText(callTool(t, srv, "get_plan", map[string]any{"id": p.ID})); !strings.Contains(text, `"monthly_payment"`) {
		t.Errorf("get_plan = %q", text)
	}
	if r := callTool(t, srv, "get_plan", map[string]any{"id": "missing"}); !r.IsError || resultText(r) != "not found" {
		t.Errorf("missing plan = %q", resultText(r))
	}

	var scenarios []models.Scenario
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "generate_scenarios", map[string]any{"plan_id": p.ID}))), &scenarios); err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 5 {
		t.Errorf("scenarios = %d", len(scenarios))
	}

	var c finance.Comparison
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "compare_scenarios", map[string]any{"plan_id": p.ID}))), &c); err != nil {
		t.Fatal(err)
	}
	if c.Baseline == "" || len(c.Deltas) != 5 {
		t.Errorf("comparison = %+v", c)
	}
}

func TestListRates(t *testing.T) {
	srv, _ := testServer(t, subscription.Free)
	var rates []models.Rate
	text := resultText(callTool(t, srv, "list_rates", map[string]any{"type": "auto", "active": true}))
	if err := json.Unmarshal([]byte(text), &rates); err != nil {
		t.Fatal(err)
	}
	if len(rates) != 1 || rates[0].ID != "beta-auto" {
		t.Errorf("rates = %+v", rates)
	}
}

func TestMethodology(t *testing.T) {
	srv, _ := testServer(t, subscription.Free)
	if text := resultText(callTool(t, srv, "get_methodology", nil)); text != Methodology {
		t.Error("methodology tool mismatch")
	}
	contents, err := srv.readMethodologyResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != MethodologyURI || !strings.Contains(tc.Text, "Monte Carlo") {
		t.Errorf("resource = %+v", contents[0])
	}
}
