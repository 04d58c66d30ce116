package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/finplan/internal/budgetservice"
	"github.com/starford/finplan/internal/catalog"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/planservice"
	"github.com/starford/finplan/internal/store"
)

// Deps are the collaborators the API routes call into.
type Deps struct {
	Plans   *planservice.Service
	Budgets *budgetservice.Service
	Catalog *catalog.Catalog
	Store   *store.DB
	Events  events.Publisher
	// SSE, if non-nil, is mounted at GET /events inside the auth group.
	SSE http.Handler
}

// Handler holds API route handlers.
type Handler struct {
	plans   *planservice.Service
	budgets *budgetservice.Service
	catalog *catalog.Catalog
	db      *store.DB
	pub     events.Publisher
	now     func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		plans:   d.Plans,
		budgets: d.Budgets,
		catalog: d.Catalog,
		db:      d.Store,
		pub:     d.Events,
		now:     time.Now,
	}
	if h.pub == nil {
		h.pub = events.Nop{}
	}
	return h
}

// NewRouter creates a chi router with all API routes mounted. Shared plan
// links are served without authentication.
func NewRouter(d Deps, auth AuthConfig) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Get("/shared/plans/{id}", h.GetSharedPlan)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))

		// Plans.
		r.Get("/plans", h.ListPlans)
		r.Post("/plans", h.CreatePlan)
		r.Get("/plans/{id}", h.GetPlan)
		r.Put("/plans/{id}", h.UpdatePlan)
		r.Delete("/plans/{id}", h.DeletePlan)
		r.Get("/plans/{id}/export", h.ExportPlan)

		// Scenarios and analysis.
		r.Post("/plans/{id}/scenarios", h.GenerateScenarios)
		r.Get("/plans/{id}/scenarios", h.ListScenarios)
		r.Get("/plans/{id}/scenarios/compare", h.CompareScenarios)
		r.Get("/plans/{id}/schedule", h.PlanSchedule)
		r.Post("/plans/{id}/monte-carlo", h.PlanMonteCarlo)
		r.Get("/plans/{id}/sensitivity", h.PlanSensitivity)
		r.Get("/plans/{id}/rates", h.PlanRates)
		r.Delete("/scenarios/{id}", h.DeleteScenario)

		// Stateless calculators.
		r.Post("/calc/metrics", h.CalcMetrics)
		r.Post("/calc/monte-carlo", h.CalcMonteCarlo)
		r.Post("/calc/sensitivity", h.CalcSensitivity)
		r.Post("/calc/schedule", h.CalcSchedule)
		r.Post("/calc/affordability", h.CalcAffordability)

		// Budgets.
		r.Get("/budgets", h.ListBudgets)
		r.Post("/budgets", h.CreateBudget)
		r.Get("/budgets/{id}", h.GetBudget)
		r.Put("/budgets/{id}", h.UpdateBudget)
		r.Delete("/budgets/{id}", h.DeleteBudget)
		r.Post("/budgets/{id}/recalculate", h.RecalculateBudget)

		// Expenses.
		r.Get("/expenses", h.ListExpenses)
		r.Post("/expenses", h.CreateExpense)
		r.Get("/expenses/analytics", h.ExpenseAnalytics)
		r.Get("/expenses/insights", h.ExpenseInsights)
		r.Get("/expenses/{id}", h.GetExpense)
		r.Put("/expenses/{id}", h.UpdateExpense)
		r.Delete("/expenses/{id}", h.DeleteExpense)

		// Rate catalog.
		r.Get("/rates", h.ListRates)
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/rates", h.CreateRate)
			r.Put("/rates/{id}", h.UpdateRate)
			r.Delete("/rates/{id}", h.DeleteRate)
		})

		r.Get("/subscription", h.Subscription)

		// SSE endpoint (protected by same auth middleware).
		if d.SSE != nil {
			r.Get("/events", d.SSE.ServeHTTP)
		}
	})

	return r
}
