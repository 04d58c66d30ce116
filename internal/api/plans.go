package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
)

func setETag(w http.ResponseWriter, p *models.Plan) {
	w.Header().Set("ETag", `"`+p.Checksum+`"`)
}

// ListPlans handles GET /api/plans.
//
//	@Summary		List the caller's plans with optional filtering and pagination
//	@Tags			plans
//	@Produce		json
//	@Param			status		query		string	false	"Filter by status"
//	@Param			type		query		string	false	"Filter by plan type"
//	@Param			visibility	query		string	false	"Filter by visibility"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	PlanListResponse
//	@Security		BearerAuth
//	@Router			/plans [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	plans, total, err := h.plans.ListPlans(r.Context(), principal(r).Owner, store.PlanFilter{
		Status:     models.PlanStatus(q.Get("status")),
		PlanType:   models.PlanType(q.Get("type")),
		Visibility: models.Visibility(q.Get("visibility")),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	})
	if err != nil {
		writeError(w, "list plans", err)
		return
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	writeJSON(w, http.StatusOK, PlanListResponse{Plans: plans, Total: total})
}

// CreatePlan handles POST /api/plans.
//
//	@Summary		Create a plan
//	@Tags			plans
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PlanRequest	true	"Plan to create"
//	@Success		201		{object}	models.Plan
//	@Failure		400		{object}	errResponse
//	@Failure		402		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decode(w, r, &req, false) {
		return
	}
	p, err := h.plans.CreatePlan(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, "create plan", err)
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusCreated, p)
}

// GetPlan handles GET /api/plans/{id}.
//
//	@Summary		Get a plan
//	@Tags			plans
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"
//	@Success		200	{object}	models.Plan
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id} [get]
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.plans.GetPlan(r.Context(), principal(r).Owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get plan", err)
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// GetSharedPlan handles GET /api/shared/plans/{id}.
//
//	@Summary		Get a public plan through its share link
//	@Tags			plans
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"
//	@Success		200	{object}	models.Plan
//	@Failure		404	{object}	errResponse
//	@Router			/shared/plans/{id} [get]
func (h *Handler) GetSharedPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.plans.GetShared(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get shared plan", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePlan handles PUT /api/plans/{id}.
//
//	@Summary		Replace a plan with optimistic concurrency
//	@Tags			plans
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Plan ID"
//	@Param			If-Match	header		string		false	"Checksum for optimistic concurrency"
//	@Param			body		body		PlanRequest	true	"Updated plan"
//	@Success		200			{object}	models.Plan
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id} [put]
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decode(w, r, &req, false) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	p, err := h.plans.UpdatePlan(r.Context(), principal(r).Owner, chi.URLParam(r, "id"), req, ifMatch)
	if err != nil {
		writeError(w, "update plan", err)
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// DeletePlan handles DELETE /api/plans/{id}.
//
//	@Summary		Delete a plan and its scenarios
//	@Tags			plans
//	@Param			id	path	string	true	"Plan ID"
//	@Success		204	"Plan deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id} [delete]
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.DeletePlan(r.Context(), principal(r).Owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPlan handles GET /api/plans/{id}/export.
//
//	@Summary		Export a plan with its scenarios
//	@Tags			plans
//	@Produce		json,text/csv
//	@Param			id		path	string	true	"Plan ID"
//	@Param			format	query	string	false	"Export format"	Enums(json, csv)
//	@Success		200		{file}	file
//	@Failure		402		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/export [get]
func (h *Handler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	f, err := h.plans.Export(r.Context(), principal(r), chi.URLParam(r, "id"), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "export plan", err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

// GenerateScenarios handles POST /api/plans/{id}/scenarios.
//
//	@Summary		Generate the standard scenario set for a plan, replacing earlier ones
//	@Tags			scenarios
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"
//	@Success		201	{object}	ScenarioListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/scenarios [post]
func (h *Handler) GenerateScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.plans.GenerateScenarios(r.Context(), principal(r).Owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "generate scenarios", err)
		return
	}
	writeJSON(w, http.StatusCreated, ScenarioListResponse{Scenarios: scenarios})
}

// ListScenarios handles GET /api/plans/{id}/scenarios.
//
//	@Summary		List a plan's scenarios
//	@Tags			scenarios
//	@Produce		json
//	@Param			id		path		string	true	"Plan ID"
//	@Param			type	query		string	false	"Filter by scenario type"
//	@Param			risk	query		string	false	"Filter by risk level"	Enums(low, medium, high)
//	@Success		200		{object}	ScenarioListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/scenarios [get]
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	t := finance.ScenarioType(r.URL.Query().Get("type"))
	risk := finance.RiskLevel(r.URL.Query().Get("risk"))
	if t != "" && !t.Valid() {
		writeError(w, "list scenarios", apperr.Invalid(fmt.Errorf("unknown scenario type %q", t)))
		return
	}
	if risk != "" && !risk.Valid() {
		writeError(w, "list scenarios", apperr.Invalid(fmt.Errorf("unknown risk level %q", risk)))
		return
	}
	scenarios, err := h.plans.ListScenarios(r.Context(), principal(r).Owner, chi.URLParam(r, "id"), t, risk)
	if err != nil {
		writeError(w, "list scenarios", err)
		return
	}
	if scenarios == nil {
		scenarios = []models.Scenario{}
	}
	writeJSON(w, http.StatusOK, ScenarioListResponse{Scenarios: scenarios})
}

// CompareScenarios handles GET /api/plans/{id}/scenarios/compare.
//
//	@Summary		Compare a plan's scenarios against the baseline
//	@Tags			scenarios
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"
//	@Success		200	{object}	finance.Comparison
//	@Failure		402	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/scenarios/compare [get]
func (h *Handler) CompareScenarios(w http.ResponseWriter, r *http.Request) {
	c, err := h.plans.CompareScenarios(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "compare scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteScenario handles DELETE /api/scenarios/{id}.
//
//	@Summary		Delete a scenario
//	@Tags			scenarios
//	@Param			id	path	string	true	"Scenario ID"
//	@Success		204	"Scenario deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenarios/{id} [delete]
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.DeleteScenario(r.Context(), principal(r).Owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlanSchedule handles GET /api/plans/{id}/schedule.
//
//	@Summary		Amortization schedule for a plan
//	@Tags			analysis
//	@Produce		json
//	@Param			id			path		string	true	"Plan ID"
//	@Param			detailed	query		bool	false	"Include monthly rows"
//	@Success		200			{object}	planservice.ScheduleResult
//	@Security		BearerAuth
//	@Router			/plans/{id}/schedule [get]
func (h *Handler) PlanSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := h.plans.Schedule(r.Context(), principal(r).Owner, chi.URLParam(r, "id"), queryBool(r, "detailed"))
	if err != nil {
		writeError(w, "plan schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PlanMonteCarlo handles POST /api/plans/{id}/monte-carlo.
//
//	@Summary		Monte Carlo payment distribution for a plan
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Plan ID"
//	@Param			body	body		SimulationRequest	false	"Simulation options"
//	@Success		200		{object}	finance.Simulation
//	@Failure		402		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/monte-carlo [post]
func (h *Handler) PlanMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if !decode(w, r, &req, true) {
		return
	}
	sim, err := h.plans.MonteCarlo(r.Context(), principal(r), chi.URLParam(r, "id"),
		finance.SimulationOptions{Iterations: req.Iterations, Seed: req.Seed})
	if err != nil {
		writeError(w, "plan monte carlo", err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// PlanSensitivity handles GET /api/plans/{id}/sensitivity.
//
//	@Summary		Sensitivity of a plan's total cost to each input
//	@Tags			analysis
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"
//	@Success		200	{object}	SensitivityResponse
//	@Failure		402	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/sensitivity [get]
func (h *Handler) PlanSensitivity(w http.ResponseWriter, r *http.Request) {
	factors, err := h.plans.Sensitivity(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "plan sensitivity", err)
		return
	}
	writeJSON(w, http.StatusOK, SensitivityResponse{Factors: factors})
}

// PlanRates handles GET /api/plans/{id}/rates.
//
//	@Summary		Catalog rates the plan qualifies for, cheapest first
//	@Tags			analysis
//	@Produce		json
//	@Param			id	path		string	true	"Plan ID"
//	@Success		200	{object}	RateMatchResponse
//	@Security		BearerAuth
//	@Router			/plans/{id}/rates [get]
func (h *Handler) PlanRates(w http.ResponseWriter, r *http.Request) {
	matches, err := h.plans.MatchingRates(r.Context(), principal(r).Owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "plan rates", err)
		return
	}
	writeJSON(w, http.StatusOK, RateMatchResponse{Rates: matches})
}
