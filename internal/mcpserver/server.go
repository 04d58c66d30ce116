// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes finplan calculators and plans for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/planservice"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
)

// MethodologyURI is the resource describing the calculation formulas.
const MethodologyURI = "finplan://methodology"

// Server wraps the MCP server with finplan tools.
type Server struct {
	mcp   *server.MCPServer
	plans *planservice.Service
	db    *store.DB
	who   subscription.Principal
}

// loanOptions are the tool arguments shared by every calculator.
func loanOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("purchase_price", mcp.Required(), mcp.Description("Purchase price")),
		mcp.WithNumber("down_payment", mcp.Description("Down payment (default 0)")),
		mcp.WithNumber("annual_rate", mcp.Required(), mcp.Description("Annual interest rate in percent, e.g. 8.5")),
		mcp.WithNumber("term_months", mcp.Required(), mcp.Description("Loan term in months")),
		mcp.WithNumber("monthly_income", mcp.Description("Monthly household income")),
		mcp.WithNumber("monthly_expenses", mcp.Description("Monthly household expenses")),
	}
}

func tool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
}

// New creates a new MCP server with all finplan tools registered. Every call
// acts as who.
func New(plans *planservice.Service, db *store.DB, who subscription.Principal) *Server {
	s := &Server{plans: plans, db: db, who: who}

	s.mcp = server.NewMCPServer(
		"finplan",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(tool("calculate_metrics",
		"Monthly payment, total cost, debt-to-income, loan-to-value and affordability score for a loan.",
		loanOptions()...,
	), s.calculateMetrics)

	s.mcp.AddTool(tool("run_monte_carlo",
		"Simulate the distribution of monthly payments under rate, price and income shocks.",
		append(loanOptions(),
			mcp.WithNumber("iterations", mcp.Description("Iterations (default 10000, max 100000)")),
			mcp.WithNumber("seed", mcp.Description("Random seed; 0 derives one from the inputs")),
		)...,
	), s.runMonteCarlo)

	s.mcp.AddTool(tool("sensitivity_analysis",
		"How total cost moves when rate, price, down payment or term change one at a time.",
		loanOptions()...,
	), s.sensitivityAnalysis)

	s.mcp.AddTool(tool("amortization_schedule",
		"Amortization schedule with yearly totals.",
		append(loanOptions(),
			mcp.WithBoolean("detailed", mcp.Description("Include every monthly installment")),
		)...,
	), s.amortizationSchedule)

	s.mcp.AddTool(tool("list_plans",
		"List stored financial plans.",
		mcp.WithString("status", mcp.Description("Filter by status: draft, active, completed, archived")),
		mcp.WithString("type", mcp.Description("Filter by plan type, e.g. home_purchase")),
	), s.listPlans)

	s.mcp.AddTool(tool("get_plan",
		"Read a stored plan with its computed metrics.",
		mcp.WithString("id", mcp.Required(), mcp.Description("Plan ID")),
	), s.getPlan)

	s.mcp.AddTool(tool("generate_scenarios",
		"Generate the baseline, optimistic, pessimistic, alternative and stress-test scenarios for a plan.",
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("Plan ID")),
	), s.generateScenarios)

	s.mcp.AddTool(tool("compare_scenarios",
		"Compare a plan's scenarios against its baseline.",
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("Plan ID")),
	), s.compareScenarios)

	s.mcp.AddTool(tool("list_rates",
		"List bank interest-rate offers, lowest rate first.",
		mcp.WithString("bank", mcp.Description("Filter by bank")),
		mcp.WithString("type", mcp.Description("Filter by product type: mortgage, auto, personal, refinance")),
		mcp.WithBoolean("active", mcp.Description("Exclude expired offers")),
	), s.listRates)

	s.mcp.AddTool(tool("get_methodology",
		"Returns the formulas behind every figure the other tools report.",
	), s.getMethodology)

	// Resource: calculation methodology.
	s.mcp.AddResource(
		mcp.NewResource(MethodologyURI, "Calculation Methodology",
			mcp.WithResourceDescription("Formulas used for metrics, scenarios, Monte Carlo and sensitivity."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMethodologyResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found"), nil
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

func loanParams(req mcp.CallToolRequest) (finance.LoanParams, error) {
	price, err := req.RequireFloat("purchase_price")
	if err != nil {
		return finance.LoanParams{}, err
	}
	rate, err := req.RequireFloat("annual_rate")
	if err != nil {
		return finance.LoanParams{}, err
	}
	term, err := req.RequireInt("term_months")
	if err != nil {
		return finance.LoanParams{}, err
	}
	p := finance.LoanParams{
		PurchasePrice:   price,
		DownPayment:     req.GetFloat("down_payment", 0),
		AnnualRate:      rate,
		TermMonths:      term,
		MonthlyIncome:   req.GetFloat("monthly_income", 0),
		MonthlyExpenses: req.GetFloat("monthly_expenses", 0),
	}
	if err := models.ValidateLoan(&p); err != nil {
		return finance.LoanParams{}, err
	}
	return p, nil
}

func (s *Server) calculateMetrics(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := loanParams(req)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(finance.Calculate(p))
}

func (s *Server) runMonteCarlo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.who.Tier.Require(subscription.MonteCarlo); err != nil {
		return errorResult(err)
	}
	p, err := loanParams(req)
	if err != nil {
		return errorResult(err)
	}
	sim, err := s.plans.Simulate(ctx, p, finance.SimulationOptions{
		Iterations: req.GetInt("iterations", 0),
		Seed:       uint64(max(req.GetInt("seed", 0), 0)),
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(sim)
}

func (s *Server) sensitivityAnalysis(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.who.Tier.Require(subscription.Sensitivity); err != nil {
		return errorResult(err)
	}
	p, err := loanParams(req)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(finance.Sensitivity(p))
}

func (s *Server) amortizationSchedule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := loanParams(req)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(planservice.BuildSchedule(p, req.GetBool("detailed", false)))
}

func (s *Server) listPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, total, err := s.plans.ListPlans(ctx, s.who.Owner, store.PlanFilter{
		Status:   models.PlanStatus(req.GetString("status", "")),
		PlanType: models.PlanType(req.GetString("type", "")),
		Limit:    100,
	})
	if err != nil {
		return errorResult(err)
	}
	if len(plans) == 0 {
		return mcp.NewToolResultText("no plans found"), nil
	}
	return jsonResult(map[string]any{"plans": plans, "total": total})
}

func (s *Server) getPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errorResult(err)
	}
	p, err := s.plans.GetPlan(ctx, s.who.Owner, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"plan": p, "metrics": finance.Calculate(p.LoanParams)})
}

func (s *Server) generateScenarios(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("plan_id")
	if err != nil {
		return errorResult(err)
	}
	scenarios, err := s.plans.GenerateScenarios(ctx, s.who.Owner, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(scenarios)
}

func (s *Server) compareScenarios(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("plan_id")
	if err != nil {
		return errorResult(err)
	}
	c, err := s.plans.CompareScenarios(ctx, s.who, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(c)
}

func (s *Server) listRates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := store.RateFilter{
		Bank:        req.GetString("bank", ""),
		ProductType: models.ProductType(req.GetString("type", "")),
	}
	if req.GetBool("active", false) {
		f.ActiveOn = civil.DateOf(time.Now())
	}
	rates, err := s.db.ListRates(ctx, f)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rates)
}

func (s *Server) getMethodology(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(Methodology), nil
}

func (s *Server) readMethodologyResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MethodologyURI,
			MIMEType: "text/markdown",
			Text:     Methodology,
		},
	}, nil
}
