package api

import (
	"context"
	"log/slog"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
)

func (h *Handler) ratesChanged(ctx context.Context, id string) {
	if err := h.pub.Publish(ctx, events.New(events.RatesUpdated, "", map[string]string{"id": id})); err != nil {
		slog.Warn("publish event failed", slog.String("type", string(events.RatesUpdated)), slog.String("error", err.Error()))
	}
}

// ListRates handles GET /api/rates.
//
//	@Summary		List interest-rate offers, lowest rate first
//	@Tags			rates
//	@Produce		json
//	@Param			bank	query		string	false	"Filter by bank"
//	@Param			type	query		string	false	"Filter by product type"	Enums(mortgage, auto, personal, refinance)
//	@Param			active	query		bool	false	"Exclude expired offers"
//	@Success		200		{object}	RateListResponse
//	@Security		BearerAuth
//	@Router			/rates [get]
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	f := store.RateFilter{
		Bank:        r.URL.Query().Get("bank"),
		ProductType: models.ProductType(r.URL.Query().Get("type")),
	}
	if queryBool(r, "active") {
		f.ActiveOn = civil.DateOf(h.now())
	}
	rates, err := h.db.ListRates(r.Context(), f)
	if err != nil {
		writeError(w, "list rates", err)
		return
	}
	writeJSON(w, http.StatusOK, RateListResponse{Rates: rates})
}

// CreateRate handles POST /api/rates.
//
//	@Summary		Add an offer to the rate catalog file
//	@Tags			rates
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Rate	true	"Rate to add"
//	@Success		201		{object}	models.Rate
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rates [post]
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req models.Rate
	if !decode(w, r, &req, false) {
		return
	}
	rate, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create rate", err)
		return
	}
	h.ratesChanged(r.Context(), rate.ID)
	writeJSON(w, http.StatusCreated, rate)
}

// UpdateRate handles PUT /api/rates/{id}.
//
//	@Summary		Replace a catalog offer
//	@Tags			rates
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Rate ID"
//	@Param			body	body		models.Rate	true	"Updated rate"
//	@Success		200		{object}	models.Rate
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rates/{id} [put]
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var req models.Rate
	if !decode(w, r, &req, false) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	rate, err := h.catalog.Update(r.Context(), req)
	if err != nil {
		writeError(w, "update rate", err)
		return
	}
	h.ratesChanged(r.Context(), rate.ID)
	writeJSON(w, http.StatusOK, rate)
}

// DeleteRate handles DELETE /api/rates/{id}.
//
//	@Summary		Remove an offer from the rate catalog file
//	@Tags			rates
//	@Param			id	path	string	true	"Rate ID"
//	@Success		204	"Rate deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rates/{id} [delete]
func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		writeError(w, "delete rate", err)
		return
	}
	h.ratesChanged(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// Subscription handles GET /api/subscription.
//
//	@Summary		The caller's tier and unlocked features
//	@Tags			subscription
//	@Produce		json
//	@Success		200	{object}	SubscriptionResponse
//	@Security		BearerAuth
//	@Router			/subscription [get]
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	who := principal(r)
	features := who.Tier.Features()
	if features == nil {
		features = []subscription.Feature{}
	}
	writeJSON(w, http.StatusOK, SubscriptionResponse{
		Owner:     who.Owner,
		Tier:      who.Tier,
		Features:  features,
		PlanLimit: who.Tier.PlanLimit(),
	})
}
