package api

import (
	"net/http"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/planservice"
	"github.com/starford/finplan/internal/subscription"
)

const defaultTargetDTI = 30.0

func validLoan(w http.ResponseWriter, p *finance.LoanParams) bool {
	if err := models.ValidateLoan(p); err != nil {
		writeError(w, "validate loan", apperr.Invalid(err))
		return false
	}
	return true
}

// CalcMetrics handles POST /api/calc/metrics.
//
//	@Summary		Payment and affordability metrics for ad-hoc loan parameters
//	@Tags			calc
//	@Accept			json
//	@Produce		json
//	@Param			body	body		finance.LoanParams	true	"Loan parameters"
//	@Success		200		{object}	finance.Metrics
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calc/metrics [post]
func (h *Handler) CalcMetrics(w http.ResponseWriter, r *http.Request) {
	var p finance.LoanParams
	if !decode(w, r, &p, false) || !validLoan(w, &p) {
		return
	}
	writeJSON(w, http.StatusOK, finance.Calculate(p))
}

// CalcMonteCarlo handles POST /api/calc/monte-carlo.
//
//	@Summary		Monte Carlo payment distribution for ad-hoc loan parameters
//	@Tags			calc
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CalcSimulationRequest	true	"Loan parameters and options"
//	@Success		200		{object}	finance.Simulation
//	@Failure		402		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calc/monte-carlo [post]
func (h *Handler) CalcMonteCarlo(w http.ResponseWriter, r *http.Request) {
	if err := principal(r).Tier.Require(subscription.MonteCarlo); err != nil {
		writeError(w, "calc monte carlo", err)
		return
	}
	var req CalcSimulationRequest
	if !decode(w, r, &req, false) || !validLoan(w, &req.LoanParams) {
		return
	}
	sim, err := h.plans.Simulate(r.Context(), req.LoanParams,
		finance.SimulationOptions{Iterations: req.Iterations, Seed: req.Seed})
	if err != nil {
		writeError(w, "calc monte carlo", err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// CalcSensitivity handles POST /api/calc/sensitivity.
//
//	@Summary		Sensitivity analysis for ad-hoc loan parameters
//	@Tags			calc
//	@Accept			json
//	@Produce		json
//	@Param			body	body		finance.LoanParams	true	"Loan parameters"
//	@Success		200		{object}	SensitivityResponse
//	@Failure		402		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calc/sensitivity [post]
func (h *Handler) CalcSensitivity(w http.ResponseWriter, r *http.Request) {
	if err := principal(r).Tier.Require(subscription.Sensitivity); err != nil {
		writeError(w, "calc sensitivity", err)
		return
	}
	var p finance.LoanParams
	if !decode(w, r, &p, false) || !validLoan(w, &p) {
		return
	}
	writeJSON(w, http.StatusOK, SensitivityResponse{Factors: finance.Sensitivity(p)})
}

// CalcSchedule handles POST /api/calc/schedule.
//
//	@Summary		Amortization schedule for ad-hoc loan parameters
//	@Tags			calc
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CalcScheduleRequest	true	"Loan parameters"
//	@Success		200		{object}	planservice.ScheduleResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calc/schedule [post]
func (h *Handler) CalcSchedule(w http.ResponseWriter, r *http.Request) {
	var req CalcScheduleRequest
	if !decode(w, r, &req, false) || !validLoan(w, &req.LoanParams) {
		return
	}
	writeJSON(w, http.StatusOK, planservice.BuildSchedule(req.LoanParams, req.Detailed))
}

// CalcAffordability handles POST /api/calc/affordability.
//
//	@Summary		Highest purchase price that keeps debt-to-income at a target
//	@Tags			calc
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AffordabilityRequest	true	"Income and loan terms"
//	@Success		200		{object}	AffordabilityResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calc/affordability [post]
func (h *Handler) CalcAffordability(w http.ResponseWriter, r *http.Request) {
	var req AffordabilityRequest
	if !decode(w, r, &req, false) {
		return
	}
	if req.TargetDTI == 0 {
		req.TargetDTI = defaultTargetDTI
	}
	if err := req.Validate(); err != nil {
		writeError(w, "calc affordability", apperr.Invalid(err))
		return
	}
	price := finance.MaxAffordablePrice(req.MonthlyIncome, req.MonthlyExpenses, req.DownPayment, req.AnnualRate, req.TermMonths, req.TargetDTI)
	loan := price - req.DownPayment
	writeJSON(w, http.StatusOK, AffordabilityResponse{
		MaxPrice:       price,
		MaxLoan:        loan,
		MonthlyPayment: finance.MonthlyPayment(loan, req.AnnualRate, req.TermMonths),
		TargetDTI:      req.TargetDTI,
	})
}
