package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
)

// EventHandler accepts events from the booking and resource services and
// fans them out. Events are never persisted here; an event with no matching
// subscriptions simply evaporates.
type EventHandler struct {
	publisher *engine.Publisher
}

func NewEventHandler(p *engine.Publisher) *EventHandler {
	return &EventHandler{publisher: p}
}

type publishEventRequest struct {
	EventType      string          `json:"event_type"`
	TenantID       string          `json:"tenant_id"`
	ResourceID     string          `json:"resource_id"`
	ResourceTypeID string          `json:"resource_type_id"`
	OccurredAt     *time.Time      `json:"occurred_at,omitempty"`
	Data           json.RawMessage `json:"data"`
}

type publishEventResponse struct {
	EventType        string `json:"event_type"`
	DeliveriesQueued int    `json:"deliveries_queued"`
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !domain.EventType(req.EventType).Valid() {
		respondError(w, http.StatusBadRequest, "unknown event_type")
		return
	}
	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if len(req.Data) == 0 {
		respondError(w, http.StatusBadRequest, "data is required")
		return
	}
	if !json.Valid(req.Data) {
		respondError(w, http.StatusBadRequest, "data must be valid JSON")
		return
	}

	event := domain.Event{
		Type:           domain.EventType(req.EventType),
		TenantID:       req.TenantID,
		ResourceID:     req.ResourceID,
		ResourceTypeID: req.ResourceTypeID,
		OccurredAt:     time.Now().UTC(),
		Data:           req.Data,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	queued, err := h.publisher.Publish(r.Context(), event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to publish event")
		return
	}

	respondJSON(w, http.StatusAccepted, publishEventResponse{
		EventType:        req.EventType,
		DeliveriesQueued: queued,
	})
}
