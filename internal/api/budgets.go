package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
)

// ListBudgets handles GET /api/budgets.
//
//	@Summary		List budgets with current spending
//	@Tags			budgets
//	@Produce		json
//	@Success		200	{object}	BudgetListResponse
//	@Security		BearerAuth
//	@Router			/budgets [get]
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.budgets.ListBudgets(r.Context(), principal(r).Owner)
	if err != nil {
		writeError(w, "list budgets", err)
		return
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}
	writeJSON(w, http.StatusOK, BudgetListResponse{Budgets: budgets})
}

// CreateBudget handles POST /api/budgets.
//
//	@Summary		Create a budget
//	@Tags			budgets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BudgetRequest	true	"Budget to create"
//	@Success		201		{object}	models.Budget
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/budgets [post]
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if !decode(w, r, &req, false) {
		return
	}
	b, err := h.budgets.CreateBudget(r.Context(), principal(r).Owner, req)
	if err != nil {
		writeError(w, "create budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// GetBudget handles GET /api/budgets/{id}.
//
//	@Summary		Get a budget with current spending
//	@Tags			budgets
//	@Produce		json
//	@Param			id	path		string	true	"Budget ID"
//	@Success		200	{object}	models.Budget
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/budgets/{id} [get]
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.budgets.GetBudget(r.Context(), principal(r).Owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// UpdateBudget handles PUT /api/budgets/{id}.
//
//	@Summary		Replace a budget definition
//	@Tags			budgets
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Budget ID"
//	@Param			body	body		BudgetRequest	true	"Updated budget"
//	@Success		200		{object}	models.Budget
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/budgets/{id} [put]
func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if !decode(w, r, &req, false) {
		return
	}
	b, err := h.budgets.UpdateBudget(r.Context(), principal(r).Owner, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBudget handles DELETE /api/budgets/{id}.
//
//	@Summary		Delete a budget
//	@Tags			budgets
//	@Param			id	path	string	true	"Budget ID"
//	@Success		204	"Budget deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/budgets/{id} [delete]
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.budgets.DeleteBudget(r.Context(), principal(r).Owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete budget", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecalculateBudget handles POST /api/budgets/{id}/recalculate.
//
//	@Summary		Recompute a budget's status and alert on escalation
//	@Tags			budgets
//	@Produce		json
//	@Param			id	path		string	true	"Budget ID"
//	@Success		200	{object}	models.Budget
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/budgets/{id}/recalculate [post]
func (h *Handler) RecalculateBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.budgets.Recalculate(r.Context(), principal(r).Owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "recalculate budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListExpenses handles GET /api/expenses.
//
//	@Summary		List expenses, newest first
//	@Tags			expenses
//	@Produce		json
//	@Param			from		query		string	false	"Earliest date (YYYY-MM-DD)"
//	@Param			to			query		string	false	"Latest date (YYYY-MM-DD)"
//	@Param			category	query		string	false	"Filter by category"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	ExpenseListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses [get]
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, "list expenses", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, "list expenses", err)
		return
	}
	expenses, total, err := h.budgets.ListExpenses(r.Context(), principal(r).Owner, store.ExpenseFilter{
		From:     from,
		To:       to,
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	})
	if err != nil {
		writeError(w, "list expenses", err)
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	writeJSON(w, http.StatusOK, ExpenseListResponse{Expenses: expenses, Total: total})
}

// CreateExpense handles POST /api/expenses.
//
//	@Summary		Record an expense
//	@Tags			expenses
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExpenseRequest	true	"Expense to record"
//	@Success		201		{object}	models.Expense
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses [post]
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decode(w, r, &req, false) {
		return
	}
	e, err := h.budgets.CreateExpense(r.Context(), principal(r).Owner, req)
	if err != nil {
		writeError(w, "create expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// GetExpense handles GET /api/expenses/{id}.
//
//	@Summary		Get an expense
//	@Tags			expenses
//	@Produce		json
//	@Param			id	path		string	true	"Expense ID"
//	@Success		200	{object}	models.Expense
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses/{id} [get]
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.budgets.GetExpense(r.Context(), principal(r).Owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get expense", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateExpense handles PUT /api/expenses/{id}.
//
//	@Summary		Replace an expense
//	@Tags			expenses
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Expense ID"
//	@Param			body	body		ExpenseRequest	true	"Updated expense"
//	@Success		200		{object}	models.Expense
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses/{id} [put]
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decode(w, r, &req, false) {
		return
	}
	e, err := h.budgets.UpdateExpense(r.Context(), principal(r).Owner, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update expense", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteExpense handles DELETE /api/expenses/{id}.
//
//	@Summary		Delete an expense
//	@Tags			expenses
//	@Param			id	path	string	true	"Expense ID"
//	@Success		204	"Expense deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses/{id} [delete]
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.budgets.DeleteExpense(r.Context(), principal(r).Owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpenseAnalytics handles GET /api/expenses/analytics.
//
//	@Summary		Spending analytics over a date range (default: last 30 days)
//	@Tags			expenses
//	@Produce		json
//	@Param			from	query		string	false	"Range start (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Range end (YYYY-MM-DD)"
//	@Success		200		{object}	budgetservice.Analytics
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses/analytics [get]
func (h *Handler) ExpenseAnalytics(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, "expense analytics", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, "expense analytics", err)
		return
	}
	a, err := h.budgets.Analytics(r.Context(), principal(r).Owner, from, to)
	if err != nil {
		writeError(w, "expense analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ExpenseInsights handles GET /api/expenses/insights.
//
//	@Summary		Rule-based spending insights over a date range
//	@Tags			expenses
//	@Produce		json
//	@Param			from	query		string	false	"Range start (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Range end (YYYY-MM-DD)"
//	@Success		200		{object}	InsightListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/expenses/insights [get]
func (h *Handler) ExpenseInsights(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, "expense insights", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, "expense insights", err)
		return
	}
	insights, err := h.budgets.Insights(r.Context(), principal(r).Owner, from, to)
	if err != nil {
		writeError(w, "expense insights", err)
		return
	}
	writeJSON(w, http.StatusOK, InsightListResponse{Insights: insights})
}
