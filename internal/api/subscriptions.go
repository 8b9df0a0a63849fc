package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookwise/webhook-service/internal/auth"
	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
	"github.com/bookwise/webhook-service/internal/store"
	"github.com/go-chi/chi/v5"
)

// Dispatcher performs one delivery attempt synchronously. The send-test
// action uses it directly so the operator sees immediate pass/fail.
type Dispatcher interface {
	Deliver(ctx context.Context, job engine.DeliveryJob) domain.DeliveryOutcome
}

type SubscriptionHandler struct {
	store      *store.PostgresStore
	authz      auth.Authorizer
	builder    *engine.PayloadBuilder
	dispatcher Dispatcher
	breaker    *engine.CircuitBreaker
}

func NewSubscriptionHandler(s *store.PostgresStore, authz auth.Authorizer, builder *engine.PayloadBuilder, dispatcher Dispatcher, breaker *engine.CircuitBreaker) *SubscriptionHandler {
	return &SubscriptionHandler{store: s, authz: authz, builder: builder, dispatcher: dispatcher, breaker: breaker}
}

// tenantScope resolves the tenant a management request operates on and
// checks the caller may manage it. Global admins may target another tenant
// via the tenant_id query parameter.
func (h *SubscriptionHandler) tenantScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := callerFrom(r)
	tenantID := caller.TenantID
	if override := r.URL.Query().Get("tenant_id"); override != "" {
		tenantID = override
	}
	if !h.authz.CanManage(caller, tenantID) {
		respondError(w, http.StatusForbidden, "not allowed to manage this tenant")
		return "", false
	}
	return tenantID, true
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}

	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.TargetURL == "" {
		respondError(w, http.StatusBadRequest, "target_url is required")
		return
	}
	if req.EventType == "" {
		respondError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	sub, secret, err := h.store.CreateSubscription(r.Context(), tenantID, req)
	if err != nil {
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	respondJSON(w, http.StatusCreated, domain.CreateSubscriptionResponse{
		Subscription: *sub,
		Secret:       secret,
	})
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}

	subs, err := h.store.ListSubscriptions(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	sub, err := h.store.GetSubscription(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	type subscriptionDetail struct {
		domain.Subscription
		CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
	}

	respondJSON(w, http.StatusOK, subscriptionDetail{
		Subscription:   *sub,
		CircuitBreaker: h.breaker.GetState(r.Context(), sub.ID),
	})
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req domain.UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.store.UpdateSubscription(r.Context(), tenantID, id, req)
	if err != nil {
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	deleted, err := h.store.DeleteSubscription(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Test performs a synthetic delivery synchronously so an operator can verify
// endpoint reachability and signature handling without waiting for a real
// event. The attempt is logged like any other.
func (h *SubscriptionHandler) Test(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	sub, err := h.store.GetSubscription(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if !sub.Enabled {
		respondError(w, http.StatusConflict, "subscription is disabled")
		return
	}

	eventType := sub.EventType
	if eventType == domain.EventTypeWildcard {
		eventType = domain.EventBookingCreated
	}

	event := domain.Event{
		Type:     eventType,
		TenantID: tenantID,
		Data:     json.RawMessage(`{"test":true}`),
	}

	payload, err := h.builder.Build(event, sub.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build test payload")
		return
	}

	outcome := h.dispatcher.Deliver(r.Context(), engine.JobFromSubscription(*sub, event, payload, 0))

	respondJSON(w, http.StatusOK, outcome)
}

// Deliveries lists the delivery history of one subscription.
func (h *SubscriptionHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	sub, err := h.store.GetSubscription(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	filter := attemptFilterFromQuery(r)
	filter.TenantID = tenantID
	filter.SubscriptionID = id

	attempts, err := h.store.ListAttempts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}

func isValidationError(err error) bool {
	return errors.Is(err, store.ErrInvalidScope) ||
		errors.Is(err, store.ErrScopeTargetNotFound) ||
		errors.Is(err, store.ErrInvalidEventType) ||
		errors.Is(err, store.ErrInvalidRetryPolicy)
}
