package api

import (
	"net/http"
	"strconv"

	"github.com/bookwise/webhook-service/internal/auth"
	"github.com/bookwise/webhook-service/internal/store"
	"github.com/go-chi/chi/v5"
)

type DeliveryHandler struct {
	store *store.PostgresStore
	authz auth.Authorizer
}

func NewDeliveryHandler(s *store.PostgresStore, authz auth.Authorizer) *DeliveryHandler {
	return &DeliveryHandler{store: s, authz: authz}
}

func attemptFilterFromQuery(r *http.Request) store.AttemptFilter {
	filter := store.AttemptFilter{
		SubscriptionID: r.URL.Query().Get("subscription_id"),
		Search:         r.URL.Query().Get("search"),
	}

	switch r.URL.Query().Get("status") {
	case "success":
		t := true
		filter.Success = &t
	case "failed":
		f := false
		filter.Success = &f
	}

	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n > 0 {
		filter.Offset = n
	}

	return filter
}

func (h *DeliveryHandler) tenantScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := callerFrom(r)
	tenantID := caller.TenantID
	if override := r.URL.Query().Get("tenant_id"); override != "" {
		tenantID = override
	}
	if !h.authz.CanManage(caller, tenantID) {
		respondError(w, http.StatusForbidden, "not allowed to view this tenant")
		return "", false
	}
	return tenantID, true
}

// List returns the tenant's delivery log, filterable by subscription,
// outcome, and free-text search.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}

	filter := attemptFilterFromQuery(r)
	filter.TenantID = tenantID

	attempts, err := h.store.ListAttempts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery attempts")
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	attempt, err := h.store.GetAttempt(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery attempt")
		return
	}
	if attempt == nil {
		respondError(w, http.StatusNotFound, "delivery attempt not found")
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}
